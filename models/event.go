package models

// EventFormat соответствует ENUM event_format в БД.
type EventFormat string

const (
	FormatRoundRobin        EventFormat = "round_robin"
	FormatSingleElimination EventFormat = "single_elimination"
	FormatLeaderboard       EventFormat = "leaderboard"
)

// EventStatus соответствует ENUM event_status в БД.
type EventStatus string

const (
	EventStatusActive   EventStatus = "active"
	EventStatusFinished EventStatus = "finished"
	EventStatusCanceled EventStatus = "canceled"
)

// Event - ссылка на событие, которым владеет внешняя подсистема.
// Движок читает формат/владельца/статус и меняет только статус на finished.
type Event struct {
	ID      int         `json:"id" db:"id"`
	Format  EventFormat `json:"format" db:"format"`
	OwnerID int         `json:"owner_id" db:"owner_id"`
	Status  EventStatus `json:"status" db:"status"`
}
