package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mbessolov/tourney-engine/models"
)

var (
	ErrKnockoutMatchNotFound    = errors.New("knockout match not found")
	ErrKnockoutAlreadyGenerated = errors.New("knockout matches already exist for this event")
)

// KnockoutRepository - строки матчей single elimination. Граф зависимостей
// хранится в колонках team{1,2}_source_match_id; продвижение победителя
// пишет только в слот, соответствующий завершившемуся матчу.
type KnockoutRepository interface {
	LockEventForGeneration(ctx context.Context, exec SQLExecutor, eventID int) error
	CountByEvent(ctx context.Context, exec SQLExecutor, eventID int) (int, error)
	Create(ctx context.Context, exec SQLExecutor, match *models.KnockoutMatch) error
	ListByEvent(ctx context.Context, eventID int) ([]*models.KnockoutMatch, error)
	GetByID(ctx context.Context, exec SQLExecutor, id int, forUpdate bool) (*models.KnockoutMatch, error)
	UpdateResult(ctx context.Context, exec SQLExecutor, id, team1Score, team2Score, winnerID int, status models.MatchStatus) error
	FindBySourceMatch(ctx context.Context, exec SQLExecutor, eventID, sourceMatchID int, forUpdate bool) (*models.KnockoutMatch, error)
	SetTeamSlot(ctx context.Context, exec SQLExecutor, id, slot, teamID int, status models.MatchStatus) error
}

type postgresKnockoutRepository struct {
	db *sql.DB
}

func NewPostgresKnockoutRepository(db *sql.DB) KnockoutRepository {
	return &postgresKnockoutRepository{db: db}
}

func (r *postgresKnockoutRepository) LockEventForGeneration(ctx context.Context, exec SQLExecutor, eventID int) error {
	_, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, generationLockClass, eventID)
	if err != nil {
		return fmt.Errorf("failed to acquire generation lock for event %d: %w", eventID, err)
	}
	return nil
}

func (r *postgresKnockoutRepository) CountByEvent(ctx context.Context, exec SQLExecutor, eventID int) (int, error) {
	var count int
	err := exec.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM knockout_matches WHERE event_id = $1`, eventID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count knockout matches for event %d: %w", eventID, err)
	}
	return count, nil
}

func (r *postgresKnockoutRepository) Create(ctx context.Context, exec SQLExecutor, match *models.KnockoutMatch) error {
	query := `
		INSERT INTO knockout_matches
			(event_id, round_label, match_number, team1_id, team2_id,
			 team1_source_match_id, team2_source_match_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		match.EventID,
		match.RoundLabel,
		match.MatchNumber,
		match.Team1ID,
		match.Team2ID,
		match.Team1SourceMatchID,
		match.Team2SourceMatchID,
		match.Status,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleKnockoutError(err)
}

func (r *postgresKnockoutRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.KnockoutMatch, error) {
	query := knockoutSelectColumns + `
		FROM knockout_matches
		WHERE event_id = $1
		ORDER BY round_label DESC, match_number ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query knockout matches for event %d: %w", eventID, err)
	}
	defer rows.Close()

	matches := make([]*models.KnockoutMatch, 0)
	for rows.Next() {
		match, scanErr := scanKnockoutMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during knockout rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresKnockoutRepository) GetByID(ctx context.Context, exec SQLExecutor, id int, forUpdate bool) (*models.KnockoutMatch, error) {
	query := knockoutSelectColumns + `
		FROM knockout_matches
		WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	match, err := scanKnockoutMatch(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKnockoutMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (r *postgresKnockoutRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id, team1Score, team2Score, winnerID int, status models.MatchStatus) error {
	query := `
		UPDATE knockout_matches
		SET team1_score = $1, team2_score = $2, winner_id = $3, status = $4
		WHERE id = $5`

	result, err := exec.ExecContext(ctx, query, team1Score, team2Score, winnerID, status, id)
	if err != nil {
		return r.handleKnockoutError(err)
	}
	return checkAffectedRows(result, ErrKnockoutMatchNotFound)
}

// FindBySourceMatch находит матч, ожидающий победителя sourceMatchID.
// У матча не более одного потребителя; если его нет (финал), возвращается
// ErrKnockoutMatchNotFound.
func (r *postgresKnockoutRepository) FindBySourceMatch(ctx context.Context, exec SQLExecutor, eventID, sourceMatchID int, forUpdate bool) (*models.KnockoutMatch, error) {
	query := knockoutSelectColumns + `
		FROM knockout_matches
		WHERE event_id = $1 AND (team1_source_match_id = $2 OR team2_source_match_id = $2)`
	if forUpdate {
		query += " FOR UPDATE"
	}

	match, err := scanKnockoutMatch(exec.QueryRowContext(ctx, query, eventID, sourceMatchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKnockoutMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (r *postgresKnockoutRepository) SetTeamSlot(ctx context.Context, exec SQLExecutor, id, slot, teamID int, status models.MatchStatus) error {
	var query string
	switch slot {
	case 1:
		query = `UPDATE knockout_matches SET team1_id = $1, status = $2 WHERE id = $3`
	case 2:
		query = `UPDATE knockout_matches SET team2_id = $1, status = $2 WHERE id = $3`
	default:
		return fmt.Errorf("invalid team slot %d for knockout match %d", slot, id)
	}

	result, err := exec.ExecContext(ctx, query, teamID, status, id)
	if err != nil {
		return r.handleKnockoutError(err)
	}
	return checkAffectedRows(result, ErrKnockoutMatchNotFound)
}

func (r *postgresKnockoutRepository) handleKnockoutError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		// "23505": unique_violation
		if pqErr.Code == "23505" && pqErr.Constraint == "knockout_matches_event_round_number_key" {
			return ErrKnockoutAlreadyGenerated
		}
	}
	return err
}

const knockoutSelectColumns = `
		SELECT id, event_id, round_label, match_number, team1_id, team2_id,
		       team1_source_match_id, team2_source_match_id,
		       team1_score, team2_score, winner_id, status, created_at`

func scanKnockoutMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.KnockoutMatch, error) {
	var m models.KnockoutMatch
	err := rowScanner.Scan(
		&m.ID,
		&m.EventID,
		&m.RoundLabel,
		&m.MatchNumber,
		&m.Team1ID,
		&m.Team2ID,
		&m.Team1SourceMatchID,
		&m.Team2SourceMatchID,
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
		return nil, fmt.Errorf("failed to scan knockout match row: %w", err)
	}
	return &m, nil
}
