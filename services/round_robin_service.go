package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mbessolov/tourney-engine/brackets"
	"github.com/mbessolov/tourney-engine/models"
	"github.com/mbessolov/tourney-engine/realtime"
	"github.com/mbessolov/tourney-engine/repositories"
	"golang.org/x/sync/errgroup"
)

type RoundRobinSettingsInput struct {
	PointsPerWin  int `json:"points_per_win"`
	PointsPerDraw int `json:"points_per_draw"`
	PointsPerLoss int `json:"points_per_loss"`
}

// RoundRobinMatchView - матч расписания с именами команд для выдачи наружу.
type RoundRobinMatchView struct {
	MatchID    int                `json:"match_id"`
	Team1ID    int                `json:"team1_id"`
	Team1Name  string             `json:"team1_name"`
	Team2ID    int                `json:"team2_id"`
	Team2Name  string             `json:"team2_name"`
	Team1Score *int               `json:"team1_score,omitempty"`
	Team2Score *int               `json:"team2_score,omitempty"`
	WinnerID   *int               `json:"winner_id,omitempty"`
	Status     models.MatchStatus `json:"status"`
}

// StandingRow - строка таблицы кругового турнира.
type StandingRow struct {
	Rank           int    `json:"rank"`
	TeamID         int    `json:"team_id"`
	TeamName       string `json:"team_name"`
	Played         int    `json:"played"`
	Wins           int    `json:"wins"`
	Draws          int    `json:"draws"`
	Losses         int    `json:"losses"`
	GoalsFor       int    `json:"goals_for"`
	GoalsAgainst   int    `json:"goals_against"`
	GoalDifference int    `json:"goal_difference"`
	Points         int    `json:"points"`
}

type RoundRobinService interface {
	ConfigureSettings(ctx context.Context, eventID, callerID int, input RoundRobinSettingsInput) (*models.RoundRobinSettings, error)
	GenerateSchedule(ctx context.Context, eventID, callerID int) (int, error)
	SubmitResult(ctx context.Context, eventID, callerID, matchID, team1Score, team2Score int) (*models.RoundRobinMatch, error)
	GetSchedule(ctx context.Context, eventID int) ([]RoundRobinMatchView, error)
	GetRanking(ctx context.Context, eventID int) ([]StandingRow, error)
}

type roundRobinService struct {
	tx        repositories.Transactor
	guard     eventGuard
	rrRepo    repositories.RoundRobinRepository
	eventRepo repositories.EventRepository
	notifier  broadcaster
	logger    *slog.Logger
}

func NewRoundRobinService(
	tx repositories.Transactor,
	eventRepo repositories.EventRepository,
	rrRepo repositories.RoundRobinRepository,
	hub *realtime.Hub,
	logger *slog.Logger,
) RoundRobinService {
	if logger == nil {
		logger = slog.Default()
	}
	return &roundRobinService{
		tx:        tx,
		guard:     eventGuard{eventRepo: eventRepo},
		rrRepo:    rrRepo,
		eventRepo: eventRepo,
		notifier:  broadcaster{hub: hub},
		logger:    logger,
	}
}

// ConfigureSettings применяет настройки очков целиком. Допустимо и до,
// и после генерации расписания, любое число раз до завершения события.
func (s *roundRobinService) ConfigureSettings(ctx context.Context, eventID, callerID int, input RoundRobinSettingsInput) (*models.RoundRobinSettings, error) {
	if _, err := s.guard.ownedEvent(ctx, eventID, callerID, models.FormatRoundRobin); err != nil {
		return nil, err
	}

	settings := &models.RoundRobinSettings{
		EventID:       eventID,
		PointsPerWin:  input.PointsPerWin,
		PointsPerDraw: input.PointsPerDraw,
		PointsPerLoss: input.PointsPerLoss,
	}
	if err := s.rrRepo.UpsertSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to upsert settings for event %d: %w", eventID, err)
	}
	return settings, nil
}

// GenerateSchedule создает по одному матчу на каждую неупорядоченную пару
// одобренных команд. Генерация выполняется не более одного раза на событие:
// внутри транзакции берется advisory-блокировка, затем проверяется счетчик;
// уникальный индекс в БД страхует от проигранной гонки.
func (s *roundRobinService) GenerateSchedule(ctx context.Context, eventID, callerID int) (int, error) {
	if _, err := s.guard.ownedEvent(ctx, eventID, callerID, models.FormatRoundRobin); err != nil {
		return 0, err
	}

	teams, err := s.eventRepo.ListApprovedTeams(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to list approved teams for event %d: %w", eventID, err)
	}
	if len(teams) < 2 {
		return 0, ErrInsufficientTeams
	}

	pairs, err := brackets.AllPairs(teamIDs(teams))
	if err != nil {
		return 0, ErrInsufficientTeams
	}

	var created int
	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.rrRepo.LockEventForGeneration(ctx, tx, eventID); err != nil {
			return err
		}
		count, err := s.rrRepo.CountByEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyGenerated
		}
		created, err = s.rrRepo.CreateMatches(ctx, tx, eventID, pairs)
		if err != nil {
			if errors.Is(err, repositories.ErrRoundRobinAlreadyGenerated) {
				return ErrAlreadyGenerated
			}
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("round robin schedule generated",
		slog.Int("event_id", eventID), slog.Int("matches", created))
	s.notifier.notify(eventID, realtime.MessageScheduleGenerated, map[string]int{"matches": created})
	return created, nil
}

// SubmitResult записывает счет и победителя (NULL при ничьей) и переводит
// матч в finished. Побочных эффектов нет: матчи кругового турнира независимы.
func (s *roundRobinService) SubmitResult(ctx context.Context, eventID, callerID, matchID, team1Score, team2Score int) (*models.RoundRobinMatch, error) {
	if _, err := s.guard.ownedEvent(ctx, eventID, callerID, models.FormatRoundRobin); err != nil {
		return nil, err
	}
	if !validScore(team1Score) || !validScore(team2Score) {
		return nil, ErrNegativeScore
	}

	var updated *models.RoundRobinMatch
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		match, err := s.rrRepo.GetMatchByID(ctx, tx, matchID, true)
		if err != nil {
			if errors.Is(err, repositories.ErrRoundRobinMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if match.EventID != eventID {
			return ErrMatchNotFound
		}
		if match.Status == models.MatchStatusFinished {
			return ErrMatchAlreadyFinished
		}

		var winnerID *int
		switch {
		case team1Score > team2Score:
			winnerID = &match.Team1ID
		case team2Score > team1Score:
			winnerID = &match.Team2ID
		}

		if err := s.rrRepo.UpdateResult(ctx, tx, matchID, team1Score, team2Score, winnerID, models.MatchStatusFinished); err != nil {
			return err
		}

		match.Team1Score = &team1Score
		match.Team2Score = &team2Score
		match.WinnerID = winnerID
		match.Status = models.MatchStatusFinished
		updated = match
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.notify(eventID, realtime.MessageMatchResult, updated)
	return updated, nil
}

// GetSchedule возвращает все матчи события с именами команд. Авторизация
// не требуется.
func (s *roundRobinService) GetSchedule(ctx context.Context, eventID int) ([]RoundRobinMatchView, error) {
	if _, err := s.guard.loadEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var (
		matches []*models.RoundRobinMatch
		teams   []*models.Team
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		matches, err = s.rrRepo.ListByEvent(gCtx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = s.eventRepo.ListApprovedTeams(gCtx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load schedule for event %d: %w", eventID, err)
	}

	names := teamNames(teams)
	views := make([]RoundRobinMatchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, RoundRobinMatchView{
			MatchID:    m.ID,
			Team1ID:    m.Team1ID,
			Team1Name:  teamName(names, m.Team1ID),
			Team2ID:    m.Team2ID,
			Team2Name:  teamName(names, m.Team2ID),
			Team1Score: m.Team1Score,
			Team2Score: m.Team2Score,
			WinnerID:   m.WinnerID,
			Status:     m.Status,
		})
	}
	return views, nil
}

// GetRanking агрегирует завершенные матчи в таблицу. Сортировка: очки,
// затем разница мячей, затем забитые; ранги плотные. Команды без единого
// завершенного матча в таблицу не попадают - это контракт, а не недосмотр.
func (s *roundRobinService) GetRanking(ctx context.Context, eventID int) ([]StandingRow, error) {
	if _, err := s.guard.loadEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var (
		settings *models.RoundRobinSettings
		matches  []*models.RoundRobinMatch
		teams    []*models.Team
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		settings, err = s.rrRepo.GetSettings(gCtx, eventID)
		if errors.Is(err, repositories.ErrRoundRobinSettingsNotFound) {
			return ErrSettingsNotConfigured
		}
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.rrRepo.ListByEvent(gCtx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = s.eventRepo.ListApprovedTeams(gCtx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrSettingsNotConfigured) {
			return nil, ErrSettingsNotConfigured
		}
		return nil, fmt.Errorf("failed to load ranking inputs for event %d: %w", eventID, err)
	}

	byTeam := make(map[int]*StandingRow)
	row := func(teamID int) *StandingRow {
		if r, ok := byTeam[teamID]; ok {
			return r
		}
		r := &StandingRow{TeamID: teamID}
		byTeam[teamID] = r
		return r
	}

	// По две строки-вклада на завершенный матч, по одной на сторону.
	for _, m := range matches {
		if m.Status != models.MatchStatusFinished || m.Team1Score == nil || m.Team2Score == nil {
			continue
		}
		applyContribution(row(m.Team1ID), *m.Team1Score, *m.Team2Score, settings)
		applyContribution(row(m.Team2ID), *m.Team2Score, *m.Team1Score, settings)
	}

	names := teamNames(teams)
	rows := make([]StandingRow, 0, len(byTeam))
	for _, r := range byTeam {
		r.TeamName = teamName(names, r.TeamID)
		r.GoalDifference = r.GoalsFor - r.GoalsAgainst
		rows = append(rows, *r)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		if rows[i].GoalDifference != rows[j].GoalDifference {
			return rows[i].GoalDifference > rows[j].GoalDifference
		}
		if rows[i].GoalsFor != rows[j].GoalsFor {
			return rows[i].GoalsFor > rows[j].GoalsFor
		}
		return rows[i].TeamID < rows[j].TeamID // стабильный порядок при полном равенстве
	})

	denseRank(len(rows),
		func(i, j int) bool {
			return rows[i].Points == rows[j].Points &&
				rows[i].GoalDifference == rows[j].GoalDifference &&
				rows[i].GoalsFor == rows[j].GoalsFor
		},
		func(i, rank int) { rows[i].Rank = rank },
	)
	return rows, nil
}

func applyContribution(row *StandingRow, scored, conceded int, settings *models.RoundRobinSettings) {
	row.Played++
	row.GoalsFor += scored
	row.GoalsAgainst += conceded
	switch {
	case scored > conceded:
		row.Wins++
		row.Points += settings.PointsPerWin
	case scored == conceded:
		row.Draws++
		row.Points += settings.PointsPerDraw
	default:
		row.Losses++
		row.Points += settings.PointsPerLoss
	}
}
