package models

// MatchStatus представляет статусы матча, соответствующие ENUM в БД.
type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusReady    MatchStatus = "ready"
	MatchStatusFinished MatchStatus = "finished"
)
