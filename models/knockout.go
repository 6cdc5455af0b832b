package models

import "time"

// KnockoutMatch - узел сетки single elimination.
//
// RoundLabel - это ширина сетки на данной глубине (8, 4, 2), а не порядковый
// номер раунда. Слот команды заполняется либо напрямую (TeamNID), либо
// косвенно через TeamNSourceMatchID - ссылку на матч, победитель которого
// займет слот. При построении для каждого слота задано ровно одно из двух;
// TeamNID дописывается после завершения исходного матча.
//
// Инвариант статусов: ready тогда и только тогда, когда оба слота заполнены
// командами; finished - когда записан результат; иначе pending.
type KnockoutMatch struct {
	ID                 int         `json:"id" db:"id"`
	EventID            int         `json:"event_id" db:"event_id"`
	RoundLabel         int         `json:"round_label" db:"round_label"`
	MatchNumber        int         `json:"match_number" db:"match_number"`
	Team1ID            *int        `json:"team1_id,omitempty" db:"team1_id"`
	Team2ID            *int        `json:"team2_id,omitempty" db:"team2_id"`
	Team1SourceMatchID *int        `json:"team1_source_match_id,omitempty" db:"team1_source_match_id"`
	Team2SourceMatchID *int        `json:"team2_source_match_id,omitempty" db:"team2_source_match_id"`
	Team1Score         *int        `json:"team1_score,omitempty" db:"team1_score"`
	Team2Score         *int        `json:"team2_score,omitempty" db:"team2_score"`
	WinnerID           *int        `json:"winner_id,omitempty" db:"winner_id"`
	Status             MatchStatus `json:"status" db:"status"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
}
