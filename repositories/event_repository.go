package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mbessolov/tourney-engine/models"
)

var ErrEventNotFound = errors.New("event not found")

// EventRepository - доступ к данным, которыми владеет внешняя подсистема
// событий: само событие и снимок одобренных команд. Движок меняет только
// статус события при завершении.
type EventRepository interface {
	GetByID(ctx context.Context, id int) (*models.Event, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.EventStatus) error
	ListApprovedTeams(ctx context.Context, eventID int) ([]*models.Team, error)
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	query := `
		SELECT id, format, owner_id, status
		FROM events
		WHERE id = $1`

	event := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Format,
		&event.OwnerID,
		&event.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to scan event by id %d: %w", id, err)
	}
	return event, nil
}

func (r *postgresEventRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.EventStatus) error {
	query := `UPDATE events SET status = $1 WHERE id = $2`
	result, err := exec.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status for event %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) ListApprovedTeams(ctx context.Context, eventID int) ([]*models.Team, error) {
	query := `
		SELECT t.id, t.name
		FROM teams t
		JOIN event_registrations er ON er.team_id = t.id
		WHERE er.event_id = $1 AND er.status = 'approved'
		ORDER BY t.id ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved teams for event %d: %w", eventID, err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		var team models.Team
		if scanErr := rows.Scan(&team.ID, &team.Name); scanErr != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", scanErr)
		}
		teams = append(teams, &team)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during team rows iteration: %w", err)
	}
	return teams, nil
}
