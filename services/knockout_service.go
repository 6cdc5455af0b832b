package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/mbessolov/tourney-engine/brackets"
	"github.com/mbessolov/tourney-engine/models"
	"github.com/mbessolov/tourney-engine/realtime"
	"github.com/mbessolov/tourney-engine/repositories"
	"golang.org/x/sync/errgroup"
)

// KnockoutMatchView - узел сетки с именами команд для выдачи наружу.
type KnockoutMatchView struct {
	MatchID            int                `json:"match_id"`
	RoundLabel         int                `json:"round_label"`
	MatchNumber        int                `json:"match_number"`
	Team1ID            *int               `json:"team1_id,omitempty"`
	Team1Name          *string            `json:"team1_name,omitempty"`
	Team2ID            *int               `json:"team2_id,omitempty"`
	Team2Name          *string            `json:"team2_name,omitempty"`
	Team1SourceMatchID *int               `json:"team1_source_match_id,omitempty"`
	Team2SourceMatchID *int               `json:"team2_source_match_id,omitempty"`
	Team1Score         *int               `json:"team1_score,omitempty"`
	Team2Score         *int               `json:"team2_score,omitempty"`
	WinnerID           *int               `json:"winner_id,omitempty"`
	Status             models.MatchStatus `json:"status"`
}

// BracketView - полный граф матчей события. ChampionTeamID производное:
// победитель финала, если финал завершен; отдельная запись чемпиона
// не хранится.
type BracketView struct {
	Matches        []KnockoutMatchView `json:"matches"`
	ChampionTeamID *int                `json:"champion_team_id,omitempty"`
}

type KnockoutService interface {
	GenerateBracket(ctx context.Context, eventID, callerID int) (int, error)
	SubmitResult(ctx context.Context, eventID, callerID, matchID, team1Score, team2Score int) (*models.KnockoutMatch, error)
	GetBracket(ctx context.Context, eventID int) (*BracketView, error)
}

type knockoutService struct {
	tx        repositories.Transactor
	guard     eventGuard
	koRepo    repositories.KnockoutRepository
	eventRepo repositories.EventRepository
	notifier  broadcaster
	logger    *slog.Logger
	rng       *rand.Rand // nil - глобальный источник; подменяется в тестах
}

func NewKnockoutService(
	tx repositories.Transactor,
	eventRepo repositories.EventRepository,
	koRepo repositories.KnockoutRepository,
	hub *realtime.Hub,
	logger *slog.Logger,
) KnockoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &knockoutService{
		tx:        tx,
		guard:     eventGuard{eventRepo: eventRepo},
		koRepo:    koRepo,
		eventRepo: eventRepo,
		notifier:  broadcaster{hub: hub},
		logger:    logger,
	}
}

// GenerateBracket строит план сетки и сохраняет его одной транзакцией.
// Матчи вставляются в порядке плана - источник всегда раньше потребителя,
// поэтому ссылки планового индекса заменяются на ID строк за один проход.
// Частично построенная сетка никогда не видна другим читателям.
func (s *knockoutService) GenerateBracket(ctx context.Context, eventID, callerID int) (int, error) {
	if _, err := s.guard.ownedEvent(ctx, eventID, callerID, models.FormatSingleElimination); err != nil {
		return 0, err
	}

	teams, err := s.eventRepo.ListApprovedTeams(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to list approved teams for event %d: %w", eventID, err)
	}
	if len(teams) < 2 {
		return 0, ErrInsufficientTeams
	}

	plan, err := brackets.BuildSingleElimination(teamIDs(teams), s.rng)
	if err != nil {
		return 0, fmt.Errorf("failed to build bracket for event %d: %w", eventID, err)
	}

	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.koRepo.LockEventForGeneration(ctx, tx, eventID); err != nil {
			return err
		}
		count, err := s.koRepo.CountByEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyGenerated
		}

		planIDs := make([]int, len(plan))
		for i, pm := range plan {
			match := &models.KnockoutMatch{
				EventID:     eventID,
				RoundLabel:  pm.RoundLabel,
				MatchNumber: pm.MatchNumber,
				Status:      pm.Status,
			}
			if teamID, ok := pm.Team1.TeamID(); ok {
				match.Team1ID = &teamID
			} else if src, ok := pm.Team1.SourceIndex(); ok {
				match.Team1SourceMatchID = &planIDs[src]
			}
			if teamID, ok := pm.Team2.TeamID(); ok {
				match.Team2ID = &teamID
			} else if src, ok := pm.Team2.SourceIndex(); ok {
				match.Team2SourceMatchID = &planIDs[src]
			}

			if err := s.koRepo.Create(ctx, tx, match); err != nil {
				if errors.Is(err, repositories.ErrKnockoutAlreadyGenerated) {
					return ErrAlreadyGenerated
				}
				return err
			}
			planIDs[i] = match.ID
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("bracket generated",
		slog.Int("event_id", eventID),
		slog.Int("teams", len(teams)),
		slog.Int("matches", len(plan)))
	s.notifier.notify(eventID, realtime.MessageBracketGenerated, map[string]int{"matches": len(plan)})
	return len(plan), nil
}

// SubmitResult записывает результат (ничьи запрещены) и продвигает
// победителя в слот нижестоящего матча. Обе записи идут в одной транзакции;
// строки матчей блокируются FOR UPDATE, так что два одновременных результата
// не могут занять один слот.
func (s *knockoutService) SubmitResult(ctx context.Context, eventID, callerID, matchID, team1Score, team2Score int) (*models.KnockoutMatch, error) {
	if _, err := s.guard.ownedEvent(ctx, eventID, callerID, models.FormatSingleElimination); err != nil {
		return nil, err
	}
	if !validScore(team1Score) || !validScore(team2Score) {
		return nil, ErrNegativeScore
	}
	if team1Score == team2Score {
		return nil, ErrDrawNotAllowed
	}

	var updated *models.KnockoutMatch
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		match, err := s.koRepo.GetByID(ctx, tx, matchID, true)
		if err != nil {
			if errors.Is(err, repositories.ErrKnockoutMatchNotFound) {
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
		if match.Status != models.MatchStatusReady {
			return ErrMatchNotReady
		}

		winnerID := *match.Team1ID
		if team2Score > team1Score {
			winnerID = *match.Team2ID
		}

		if err := s.koRepo.UpdateResult(ctx, tx, matchID, team1Score, team2Score, winnerID, models.MatchStatusFinished); err != nil {
			return err
		}

		if err := s.advanceWinner(ctx, tx, eventID, matchID, winnerID); err != nil {
			return err
		}

		match.Team1Score = &team1Score
		match.Team2Score = &team2Score
		match.WinnerID = &winnerID
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

// advanceWinner пишет победителя в слот нижестоящего матча, соответствующий
// завершившемуся, и переводит его в ready, когда оба слота заполнены.
// Отсутствие нижестоящего матча означает, что сыгран финал.
func (s *knockoutService) advanceWinner(ctx context.Context, tx repositories.SQLExecutor, eventID, matchID, winnerID int) error {
	downstream, err := s.koRepo.FindBySourceMatch(ctx, tx, eventID, matchID, true)
	if err != nil {
		if errors.Is(err, repositories.ErrKnockoutMatchNotFound) {
			s.logger.Info("final match finished",
				slog.Int("event_id", eventID),
				slog.Int("match_id", matchID),
				slog.Int("winner_team_id", winnerID))
			return nil
		}
		return err
	}

	slot := 0
	otherFilled := false
	switch {
	case downstream.Team1SourceMatchID != nil && *downstream.Team1SourceMatchID == matchID:
		slot = 1
		otherFilled = downstream.Team2ID != nil
	case downstream.Team2SourceMatchID != nil && *downstream.Team2SourceMatchID == matchID:
		slot = 2
		otherFilled = downstream.Team1ID != nil
	default:
		return fmt.Errorf("downstream match %d does not reference source match %d", downstream.ID, matchID)
	}

	status := models.MatchStatusPending
	if otherFilled {
		status = models.MatchStatusReady
	}
	return s.koRepo.SetTeamSlot(ctx, tx, downstream.ID, slot, winnerID, status)
}

// GetBracket возвращает полный граф матчей с именами команд. Авторизация
// не требуется.
func (s *knockoutService) GetBracket(ctx context.Context, eventID int) (*BracketView, error) {
	if _, err := s.guard.loadEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var (
		matches []*models.KnockoutMatch
		teams   []*models.Team
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		matches, err = s.koRepo.ListByEvent(gCtx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = s.eventRepo.ListApprovedTeams(gCtx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load bracket for event %d: %w", eventID, err)
	}

	names := teamNames(teams)
	view := &BracketView{Matches: make([]KnockoutMatchView, 0, len(matches))}

	consumed := make(map[int]bool, len(matches))
	for _, m := range matches {
		if m.Team1SourceMatchID != nil {
			consumed[*m.Team1SourceMatchID] = true
		}
		if m.Team2SourceMatchID != nil {
			consumed[*m.Team2SourceMatchID] = true
		}
	}

	for _, m := range matches {
		view.Matches = append(view.Matches, KnockoutMatchView{
			MatchID:            m.ID,
			RoundLabel:         m.RoundLabel,
			MatchNumber:        m.MatchNumber,
			Team1ID:            m.Team1ID,
			Team1Name:          lookupTeamName(names, m.Team1ID),
			Team2ID:            m.Team2ID,
			Team2Name:          lookupTeamName(names, m.Team2ID),
			Team1SourceMatchID: m.Team1SourceMatchID,
			Team2SourceMatchID: m.Team2SourceMatchID,
			Team1Score:         m.Team1Score,
			Team2Score:         m.Team2Score,
			WinnerID:           m.WinnerID,
			Status:             m.Status,
		})
		// Матч без потребителя - финал; его победитель и есть чемпион.
		if !consumed[m.ID] && m.Status == models.MatchStatusFinished && m.WinnerID != nil {
			view.ChampionTeamID = m.WinnerID
		}
	}
	return view, nil
}

func lookupTeamName(names map[int]string, teamID *int) *string {
	if teamID == nil {
		return nil
	}
	name := teamName(names, *teamID)
	return &name
}
