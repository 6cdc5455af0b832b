package models

import "time"

// RoundRobinMatch - одна строка на неупорядоченную пару одобренных команд.
// Победитель NULL при ничьей. Создается один раз при генерации расписания.
type RoundRobinMatch struct {
	ID         int         `json:"id" db:"id"`
	EventID    int         `json:"event_id" db:"event_id"`
	Team1ID    int         `json:"team1_id" db:"team1_id"`
	Team2ID    int         `json:"team2_id" db:"team2_id"`
	Team1Score *int        `json:"team1_score,omitempty" db:"team1_score"`
	Team2Score *int        `json:"team2_score,omitempty" db:"team2_score"`
	WinnerID   *int        `json:"winner_id,omitempty" db:"winner_id"`
	Status     MatchStatus `json:"status" db:"status"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// RoundRobinSettings - ровно одна строка на событие, upsert целиком.
// Может меняться и до, и после генерации расписания.
type RoundRobinSettings struct {
	EventID       int       `json:"event_id" db:"event_id"`
	PointsPerWin  int       `json:"points_per_win" db:"points_per_win"`
	PointsPerDraw int       `json:"points_per_draw" db:"points_per_draw"`
	PointsPerLoss int       `json:"points_per_loss" db:"points_per_loss"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
