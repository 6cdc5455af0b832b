package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mbessolov/tourney-engine/models"
)

// LeaderboardRepository - очки команд по раундам, upsert по ключу
// (event_id, team_id, round_number). Раунды могут перезаписываться
// до завершения события.
type LeaderboardRepository interface {
	UpsertEntry(ctx context.Context, exec SQLExecutor, entry *models.LeaderboardScoreEntry) error
	ListByEvent(ctx context.Context, eventID int) ([]*models.LeaderboardScoreEntry, error)
}

type postgresLeaderboardRepository struct {
	db *sql.DB
}

func NewPostgresLeaderboardRepository(db *sql.DB) LeaderboardRepository {
	return &postgresLeaderboardRepository{db: db}
}

func (r *postgresLeaderboardRepository) UpsertEntry(ctx context.Context, exec SQLExecutor, entry *models.LeaderboardScoreEntry) error {
	if entry.LastModifiedAt.IsZero() {
		entry.LastModifiedAt = time.Now()
	}
	query := `
		INSERT INTO leaderboard_scores (event_id, team_id, round_number, points, last_modified_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, team_id, round_number) DO UPDATE
		SET points = EXCLUDED.points,
		    last_modified_at = EXCLUDED.last_modified_at
		RETURNING id`

	err := exec.QueryRowContext(ctx, query,
		entry.EventID,
		entry.TeamID,
		entry.RoundNumber,
		entry.Points,
		entry.LastModifiedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert leaderboard entry for event %d team %d round %d: %w",
			entry.EventID, entry.TeamID, entry.RoundNumber, err)
	}
	return nil
}

func (r *postgresLeaderboardRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.LeaderboardScoreEntry, error) {
	query := `
		SELECT id, event_id, team_id, round_number, points, last_modified_at
		FROM leaderboard_scores
		WHERE event_id = $1
		ORDER BY round_number ASC, points DESC, team_id ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard entries for event %d: %w", eventID, err)
	}
	defer rows.Close()

	entries := make([]*models.LeaderboardScoreEntry, 0)
	for rows.Next() {
		var entry models.LeaderboardScoreEntry
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.EventID,
			&entry.TeamID,
			&entry.RoundNumber,
			&entry.Points,
			&entry.LastModifiedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry row: %w", scanErr)
		}
		entries = append(entries, &entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during leaderboard rows iteration: %w", err)
	}
	return entries, nil
}
