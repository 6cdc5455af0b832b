package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mbessolov/tourney-engine/brackets"
	"github.com/mbessolov/tourney-engine/models"
)

var (
	ErrRoundRobinMatchNotFound    = errors.New("round robin match not found")
	ErrRoundRobinAlreadyGenerated = errors.New("round robin matches already exist for this event")
	ErrRoundRobinSettingsNotFound = errors.New("round robin settings not found")
)

// RoundRobinRepository - строки матчей кругового формата и настройки очков.
// Генерация защищена advisory-блокировкой на событие плюс уникальным
// ограничением (event_id, team1_id, team2_id): проигравший гонку insert
// получает ErrRoundRobinAlreadyGenerated вместо дублей.
type RoundRobinRepository interface {
	LockEventForGeneration(ctx context.Context, exec SQLExecutor, eventID int) error
	CountByEvent(ctx context.Context, exec SQLExecutor, eventID int) (int, error)
	CreateMatches(ctx context.Context, exec SQLExecutor, eventID int, pairs []brackets.Pair) (int, error)
	ListByEvent(ctx context.Context, eventID int) ([]*models.RoundRobinMatch, error)
	GetMatchByID(ctx context.Context, exec SQLExecutor, id int, forUpdate bool) (*models.RoundRobinMatch, error)
	UpdateResult(ctx context.Context, exec SQLExecutor, id, team1Score, team2Score int, winnerID *int, status models.MatchStatus) error
	GetSettings(ctx context.Context, eventID int) (*models.RoundRobinSettings, error)
	UpsertSettings(ctx context.Context, settings *models.RoundRobinSettings) error
}

type postgresRoundRobinRepository struct {
	db *sql.DB
}

func NewPostgresRoundRobinRepository(db *sql.DB) RoundRobinRepository {
	return &postgresRoundRobinRepository{db: db}
}

func (r *postgresRoundRobinRepository) LockEventForGeneration(ctx context.Context, exec SQLExecutor, eventID int) error {
	// Блокировка держится до конца транзакции.
	_, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, generationLockClass, eventID)
	if err != nil {
		return fmt.Errorf("failed to acquire generation lock for event %d: %w", eventID, err)
	}
	return nil
}

func (r *postgresRoundRobinRepository) CountByEvent(ctx context.Context, exec SQLExecutor, eventID int) (int, error) {
	var count int
	err := exec.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM round_robin_matches WHERE event_id = $1`, eventID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count round robin matches for event %d: %w", eventID, err)
	}
	return count, nil
}

func (r *postgresRoundRobinRepository) CreateMatches(ctx context.Context, exec SQLExecutor, eventID int, pairs []brackets.Pair) (int, error) {
	if len(pairs) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO round_robin_matches (event_id, team1_id, team2_id, status)
		VALUES ($1, $2, $3, $4)`

	for _, pair := range pairs {
		_, err := exec.ExecContext(ctx, query, eventID, pair.Team1ID, pair.Team2ID, models.MatchStatusPending)
		if err != nil {
			return 0, r.handleRoundRobinError(err)
		}
	}
	return len(pairs), nil
}

func (r *postgresRoundRobinRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.RoundRobinMatch, error) {
	query := `
		SELECT id, event_id, team1_id, team2_id, team1_score, team2_score, winner_id, status, created_at
		FROM round_robin_matches
		WHERE event_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query round robin matches for event %d: %w", eventID, err)
	}
	defer rows.Close()

	matches := make([]*models.RoundRobinMatch, 0)
	for rows.Next() {
		match, scanErr := scanRoundRobinMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during round robin rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresRoundRobinRepository) GetMatchByID(ctx context.Context, exec SQLExecutor, id int, forUpdate bool) (*models.RoundRobinMatch, error) {
	query := `
		SELECT id, event_id, team1_id, team2_id, team1_score, team2_score, winner_id, status, created_at
		FROM round_robin_matches
		WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	match, err := scanRoundRobinMatch(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundRobinMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (r *postgresRoundRobinRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id, team1Score, team2Score int, winnerID *int, status models.MatchStatus) error {
	query := `
		UPDATE round_robin_matches
		SET team1_score = $1, team2_score = $2, winner_id = $3, status = $4
		WHERE id = $5`

	result, err := exec.ExecContext(ctx, query, team1Score, team2Score, winnerID, status, id)
	if err != nil {
		return r.handleRoundRobinError(err)
	}
	return checkAffectedRows(result, ErrRoundRobinMatchNotFound)
}

func (r *postgresRoundRobinRepository) GetSettings(ctx context.Context, eventID int) (*models.RoundRobinSettings, error) {
	query := `
		SELECT event_id, points_per_win, points_per_draw, points_per_loss, updated_at
		FROM round_robin_settings
		WHERE event_id = $1`

	settings := &models.RoundRobinSettings{}
	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&settings.EventID,
		&settings.PointsPerWin,
		&settings.PointsPerDraw,
		&settings.PointsPerLoss,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundRobinSettingsNotFound
		}
		return nil, fmt.Errorf("failed to scan round robin settings for event %d: %w", eventID, err)
	}
	return settings, nil
}

func (r *postgresRoundRobinRepository) UpsertSettings(ctx context.Context, settings *models.RoundRobinSettings) error {
	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = time.Now()
	}
	query := `
		INSERT INTO round_robin_settings (event_id, points_per_win, points_per_draw, points_per_loss, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO UPDATE
		SET points_per_win = EXCLUDED.points_per_win,
		    points_per_draw = EXCLUDED.points_per_draw,
		    points_per_loss = EXCLUDED.points_per_loss,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		settings.EventID,
		settings.PointsPerWin,
		settings.PointsPerDraw,
		settings.PointsPerLoss,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert round robin settings for event %d: %w", settings.EventID, err)
	}
	return nil
}

func (r *postgresRoundRobinRepository) handleRoundRobinError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		// "23505": unique_violation
		if pqErr.Code == "23505" && pqErr.Constraint == "round_robin_matches_event_pair_key" {
			return ErrRoundRobinAlreadyGenerated
		}
	}
	return err
}

func scanRoundRobinMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.RoundRobinMatch, error) {
	var m models.RoundRobinMatch
	err := rowScanner.Scan(
		&m.ID,
		&m.EventID,
		&m.Team1ID,
		&m.Team2ID,
		&m.Team1Score,
		&m.Team2Score,
		&m.WinnerID,
		&m.Status,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan round robin match row: %w", err)
	}
	return &m, nil
}
