package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mbessolov/tourney-engine/models"
	"github.com/mbessolov/tourney-engine/realtime"
	"github.com/mbessolov/tourney-engine/repositories"
	"golang.org/x/sync/errgroup"
)

type TeamScoreInput struct {
	TeamID int `json:"team_id"`
	Points int `json:"points"`
}

type LeaderboardRoundEntry struct {
	TeamID   int    `json:"team_id"`
	TeamName string `json:"team_name"`
	Points   int    `json:"points"`
}

type LeaderboardRound struct {
	RoundNumber int                     `json:"round_number"`
	Scores      []LeaderboardRoundEntry `json:"scores"`
}

// LeaderboardRoundsView - все раунды по возрастанию номера, очки внутри
// раунда по убыванию. NextRoundNumber = max(существующих) + 1 - подсказка
// для отображения; номер раунда задает организатор.
type LeaderboardRoundsView struct {
	Rounds          []LeaderboardRound `json:"rounds"`
	NextRoundNumber int                `json:"next_round_number"`
}

// LeaderboardRankRow - строка итогового рейтинга. Плотный ранг по сумме
// очков без вторичного критерия.
type LeaderboardRankRow struct {
	Rank        int    `json:"rank"`
	TeamID      int    `json:"team_id"`
	TeamName    string `json:"team_name"`
	TotalPoints int    `json:"total_points"`
}

type LeaderboardService interface {
	SubmitRound(ctx context.Context, eventID, callerID, roundNumber int, scores []TeamScoreInput) error
	GetRounds(ctx context.Context, eventID int) (*LeaderboardRoundsView, error)
	GetRanking(ctx context.Context, eventID int) ([]LeaderboardRankRow, error)
}

type leaderboardService struct {
	tx        repositories.Transactor
	guard     eventGuard
	lbRepo    repositories.LeaderboardRepository
	eventRepo repositories.EventRepository
	notifier  broadcaster
	logger    *slog.Logger
}

func NewLeaderboardService(
	tx repositories.Transactor,
	eventRepo repositories.EventRepository,
	lbRepo repositories.LeaderboardRepository,
	hub *realtime.Hub,
	logger *slog.Logger,
) LeaderboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &leaderboardService{
		tx:        tx,
		guard:     eventGuard{eventRepo: eventRepo},
		lbRepo:    lbRepo,
		eventRepo: eventRepo,
		notifier:  broadcaster{hub: hub},
		logger:    logger,
	}
}

// SubmitRound применяет очки раунда целиком: upsert по ключу
// (event_id, team_id, round_number), все записи в одной транзакции.
// Повторная отправка раунда перезаписывает его.
func (s *leaderboardService) SubmitRound(ctx context.Context, eventID, callerID, roundNumber int, scores []TeamScoreInput) error {
	if _, err := s.guard.ownedEvent(ctx, eventID, callerID, models.FormatLeaderboard); err != nil {
		return err
	}
	if roundNumber < 1 {
		return ErrInvalidRoundNumber
	}
	if len(scores) == 0 {
		return ErrEmptyScoreList
	}
	for _, score := range scores {
		if score.TeamID <= 0 {
			return ErrInvalidTeamID
		}
		if !validScore(score.Points) {
			return ErrNegativeScore
		}
	}

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		for _, score := range scores {
			entry := &models.LeaderboardScoreEntry{
				EventID:     eventID,
				TeamID:      score.TeamID,
				RoundNumber: roundNumber,
				Points:      score.Points,
			}
			if err := s.lbRepo.UpsertEntry(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("leaderboard round submitted",
		slog.Int("event_id", eventID),
		slog.Int("round", roundNumber),
		slog.Int("entries", len(scores)))
	s.notifier.notify(eventID, realtime.MessageLeaderboardUpdated, map[string]int{"round_number": roundNumber})
	return nil
}

// GetRounds группирует записи по раундам: раунды по возрастанию, очки
// внутри раунда по убыванию. Авторизация не требуется.
func (s *leaderboardService) GetRounds(ctx context.Context, eventID int) (*LeaderboardRoundsView, error) {
	entries, teams, err := s.loadEntries(ctx, eventID)
	if err != nil {
		return nil, err
	}

	names := teamNames(teams)
	view := &LeaderboardRoundsView{Rounds: make([]LeaderboardRound, 0)}

	// Репозиторий отдает записи уже в порядке (round ASC, points DESC).
	maxRound := 0
	for _, entry := range entries {
		if entry.RoundNumber > maxRound {
			maxRound = entry.RoundNumber
		}
		n := len(view.Rounds)
		if n == 0 || view.Rounds[n-1].RoundNumber != entry.RoundNumber {
			view.Rounds = append(view.Rounds, LeaderboardRound{RoundNumber: entry.RoundNumber})
			n++
		}
		view.Rounds[n-1].Scores = append(view.Rounds[n-1].Scores, LeaderboardRoundEntry{
			TeamID:   entry.TeamID,
			TeamName: teamName(names, entry.TeamID),
			Points:   entry.Points,
		})
	}
	view.NextRoundNumber = maxRound + 1
	return view, nil
}

// GetRanking суммирует очки команд по всем раундам и проставляет плотные
// ранги по убыванию суммы. Вторичного критерия нет - в отличие от таблицы
// кругового турнира.
func (s *leaderboardService) GetRanking(ctx context.Context, eventID int) ([]LeaderboardRankRow, error) {
	entries, teams, err := s.loadEntries(ctx, eventID)
	if err != nil {
		return nil, err
	}

	totals := make(map[int]int)
	for _, entry := range entries {
		totals[entry.TeamID] += entry.Points
	}

	names := teamNames(teams)
	rows := make([]LeaderboardRankRow, 0, len(totals))
	for teamID, total := range totals {
		rows = append(rows, LeaderboardRankRow{
			TeamID:      teamID,
			TeamName:    teamName(names, teamID),
			TotalPoints: total,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalPoints != rows[j].TotalPoints {
			return rows[i].TotalPoints > rows[j].TotalPoints
		}
		return rows[i].TeamID < rows[j].TeamID // стабильный порядок при равенстве
	})

	denseRank(len(rows),
		func(i, j int) bool { return rows[i].TotalPoints == rows[j].TotalPoints },
		func(i, rank int) { rows[i].Rank = rank },
	)
	return rows, nil
}

func (s *leaderboardService) loadEntries(ctx context.Context, eventID int) ([]*models.LeaderboardScoreEntry, []*models.Team, error) {
	if _, err := s.guard.loadEvent(ctx, eventID); err != nil {
		return nil, nil, err
	}

	var (
		entries []*models.LeaderboardScoreEntry
		teams   []*models.Team
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.lbRepo.ListByEvent(gCtx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = s.eventRepo.ListApprovedTeams(gCtx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("failed to load leaderboard for event %d: %w", eventID, err)
	}
	return entries, teams, nil
}
