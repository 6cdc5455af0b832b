package models

import "time"

// LeaderboardScoreEntry - очки команды за раунд, уникально по
// (event_id, team_id, round_number). Раунд может быть перезаписан
// организатором в любой момент до завершения события.
type LeaderboardScoreEntry struct {
	ID             int       `json:"id" db:"id"`
	EventID        int       `json:"event_id" db:"event_id"`
	TeamID         int       `json:"team_id" db:"team_id"`
	RoundNumber    int       `json:"round_number" db:"round_number"`
	Points         int       `json:"points" db:"points"`
	LastModifiedAt time.Time `json:"last_modified_at" db:"last_modified_at"`
}
