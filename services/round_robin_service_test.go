package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mbessolov/tourney-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventID = 1
	testOwnerID = 42
)

func newRoundRobinFixture(t *testing.T, format models.EventFormat, teams ...*models.Team) (RoundRobinService, *fakeRoundRobinRepo, *fakeEventRepo) {
	t.Helper()
	eventRepo := newFakeEventRepo()
	eventRepo.addEvent(models.Event{
		ID:      testEventID,
		Format:  format,
		OwnerID: testOwnerID,
		Status:  models.EventStatusActive,
	}, teams...)

	rrRepo := newFakeRoundRobinRepo()
	svc := NewRoundRobinService(&fakeTransactor{}, eventRepo, rrRepo, nil, nil)
	return svc, rrRepo, eventRepo
}

func approvedTeams(names ...string) []*models.Team {
	teams := make([]*models.Team, len(names))
	for i, name := range names {
		teams[i] = &models.Team{ID: i + 1, Name: name}
	}
	return teams
}

func TestGenerateScheduleCreatesAllPairs(t *testing.T) {
	svc, rrRepo, _ := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Alpha", "Beta", "Gamma")...)

	created, err := svc.GenerateSchedule(context.Background(), testEventID, testOwnerID)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	matches, err := rrRepo.ListByEvent(context.Background(), testEventID)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.Equal(t, models.MatchStatusPending, m.Status)
		assert.Nil(t, m.WinnerID)
	}
}

func TestGenerateScheduleSecondCallConflicts(t *testing.T) {
	svc, _, _ := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Alpha", "Beta")...)

	_, err := svc.GenerateSchedule(context.Background(), testEventID, testOwnerID)
	require.NoError(t, err)

	_, err = svc.GenerateSchedule(context.Background(), testEventID, testOwnerID)
	assert.ErrorIs(t, err, ErrAlreadyGenerated)
}

func TestGenerateScheduleConcurrentCallsCreateOneSchedule(t *testing.T) {
	svc, rrRepo, _ := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Alpha", "Beta", "Gamma")...)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.GenerateSchedule(context.Background(), testEventID, testOwnerID)
		}(i)
	}
	wg.Wait()

	// Ровно один вызов выигрывает генерацию, второй получает конфликт.
	var succeeded, conflicted int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyGenerated):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	matches, err := rrRepo.ListByEvent(context.Background(), testEventID)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestGenerateScheduleGuards(t *testing.T) {
	t.Run("requires at least two teams", func(t *testing.T) {
		svc, _, _ := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Solo")...)
		_, err := svc.GenerateSchedule(context.Background(), testEventID, testOwnerID)
		assert.ErrorIs(t, err, ErrInsufficientTeams)
	})

	t.Run("owner only", func(t *testing.T) {
		svc, _, _ := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Alpha", "Beta")...)
		_, err := svc.GenerateSchedule(context.Background(), testEventID, testOwnerID+1)
		assert.ErrorIs(t, err, ErrNotEventOwner)
	})

	t.Run("format mismatch", func(t *testing.T) {
		svc, _, _ := newRoundRobinFixture(t, models.FormatSingleElimination, approvedTeams("Alpha", "Beta")...)
		_, err := svc.GenerateSchedule(context.Background(), testEventID, testOwnerID)
		assert.ErrorIs(t, err, ErrFormatMismatch)
	})

	t.Run("unknown event", func(t *testing.T) {
		svc, _, _ := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Alpha", "Beta")...)
		_, err := svc.GenerateSchedule(context.Background(), testEventID+100, testOwnerID)
		assert.ErrorIs(t, err, ErrEventNotFound)
	})

	t.Run("finished event", func(t *testing.T) {
		svc, _, eventRepo := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Alpha", "Beta")...)
		require.NoError(t, eventRepo.UpdateStatus(context.Background(), nil, testEventID, models.EventStatusFinished))
		_, err := svc.GenerateSchedule(context.Background(), testEventID, testOwnerID)
		assert.ErrorIs(t, err, ErrEventFinished)
	})
}

func TestSubmitRoundRobinResult(t *testing.T) {
	svc, rrRepo, _ := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Alpha", "Beta", "Gamma")...)
	_, err := svc.GenerateSchedule(context.Background(), testEventID, testOwnerID)
	require.NoError(t, err)

	matches, err := rrRepo.ListByEvent(context.Background(), testEventID)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	t.Run("records winner", func(t *testing.T) {
		m := matches[0]
		updated, err := svc.SubmitResult(context.Background(), testEventID, testOwnerID, m.ID, 2, 1)
		require.NoError(t, err)
		require.NotNil(t, updated.WinnerID)
		assert.Equal(t, m.Team1ID, *updated.WinnerID)
		assert.Equal(t, models.MatchStatusFinished, updated.Status)
	})

	t.Run("draw stores null winner", func(t *testing.T) {
		m := matches[1]
		updated, err := svc.SubmitResult(context.Background(), testEventID, testOwnerID, m.ID, 1, 1)
		require.NoError(t, err)
		assert.Nil(t, updated.WinnerID)
		assert.Equal(t, models.MatchStatusFinished, updated.Status)
	})

	t.Run("finished match rejected", func(t *testing.T) {
		_, err := svc.SubmitResult(context.Background(), testEventID, testOwnerID, matches[0].ID, 3, 0)
		assert.ErrorIs(t, err, ErrMatchAlreadyFinished)
	})

	t.Run("negative score rejected", func(t *testing.T) {
		_, err := svc.SubmitResult(context.Background(), testEventID, testOwnerID, matches[2].ID, -1, 0)
		assert.ErrorIs(t, err, ErrNegativeScore)
	})

	t.Run("unknown match", func(t *testing.T) {
		_, err := svc.SubmitResult(context.Background(), testEventID, testOwnerID, 9999, 1, 0)
		assert.ErrorIs(t, err, ErrMatchNotFound)
	})
}

func TestSubmitResultOtherEventMatchNotVisible(t *testing.T) {
	eventRepo := newFakeEventRepo()
	eventRepo.addEvent(models.Event{ID: 1, Format: models.FormatRoundRobin, OwnerID: testOwnerID, Status: models.EventStatusActive},
		approvedTeams("Alpha", "Beta")...)
	eventRepo.addEvent(models.Event{ID: 2, Format: models.FormatRoundRobin, OwnerID: testOwnerID, Status: models.EventStatusActive},
		&models.Team{ID: 10, Name: "Delta"}, &models.Team{ID: 11, Name: "Echo"})

	rrRepo := newFakeRoundRobinRepo()
	svc := NewRoundRobinService(&fakeTransactor{}, eventRepo, rrRepo, nil, nil)

	_, err := svc.GenerateSchedule(context.Background(), 2, testOwnerID)
	require.NoError(t, err)
	matches, err := rrRepo.ListByEvent(context.Background(), 2)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	// Матч существует, но принадлежит другому событию.
	_, err = svc.SubmitResult(context.Background(), 1, testOwnerID, matches[0].ID, 1, 0)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestConfigureSettingsUpserts(t *testing.T) {
	svc, rrRepo, _ := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Alpha", "Beta")...)

	_, err := svc.ConfigureSettings(context.Background(), testEventID, testOwnerID, RoundRobinSettingsInput{
		PointsPerWin: 2, PointsPerDraw: 1, PointsPerLoss: 0,
	})
	require.NoError(t, err)

	_, err = svc.ConfigureSettings(context.Background(), testEventID, testOwnerID, RoundRobinSettingsInput{
		PointsPerWin: 3, PointsPerDraw: 1, PointsPerLoss: 0,
	})
	require.NoError(t, err)

	settings, err := rrRepo.GetSettings(context.Background(), testEventID)
	require.NoError(t, err)
	assert.Equal(t, 3, settings.PointsPerWin)
	assert.Equal(t, 1, settings.PointsPerDraw)
	assert.Equal(t, 0, settings.PointsPerLoss)
}

func TestGetRankingRequiresSettings(t *testing.T) {
	svc, _, _ := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Alpha", "Beta")...)
	_, err := svc.GetRanking(context.Background(), testEventID)
	assert.ErrorIs(t, err, ErrSettingsNotConfigured)
}

func TestGetRankingAggregatesFinishedMatches(t *testing.T) {
	// Alpha (1) обыгрывает Beta (2) 2:1 и играет вничью 0:0 с Gamma (3);
	// Delta (4) одобрена, но не сыграла ни одного матча.
	svc, rrRepo, _ := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Alpha", "Beta", "Gamma", "Delta")...)

	_, err := svc.ConfigureSettings(context.Background(), testEventID, testOwnerID, RoundRobinSettingsInput{
		PointsPerWin: 3, PointsPerDraw: 1, PointsPerLoss: 0,
	})
	require.NoError(t, err)
	_, err = svc.GenerateSchedule(context.Background(), testEventID, testOwnerID)
	require.NoError(t, err)

	matches, err := rrRepo.ListByEvent(context.Background(), testEventID)
	require.NoError(t, err)

	findMatch := func(team1, team2 int) int {
		for _, m := range matches {
			if m.Team1ID == team1 && m.Team2ID == team2 {
				return m.ID
			}
		}
		t.Fatalf("match between %d and %d not found", team1, team2)
		return 0
	}

	_, err = svc.SubmitResult(context.Background(), testEventID, testOwnerID, findMatch(1, 2), 2, 1)
	require.NoError(t, err)
	_, err = svc.SubmitResult(context.Background(), testEventID, testOwnerID, findMatch(1, 3), 0, 0)
	require.NoError(t, err)

	rows, err := svc.GetRanking(context.Background(), testEventID)
	require.NoError(t, err)

	// Delta без завершенных матчей в таблицу не попадает.
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 1, rows[0].TeamID)
	assert.Equal(t, "Alpha", rows[0].TeamName)
	assert.Equal(t, 2, rows[0].Played)
	assert.Equal(t, 1, rows[0].Wins)
	assert.Equal(t, 1, rows[0].Draws)
	assert.Equal(t, 0, rows[0].Losses)
	assert.Equal(t, 2, rows[0].GoalsFor)
	assert.Equal(t, 1, rows[0].GoalsAgainst)
	assert.Equal(t, 1, rows[0].GoalDifference)
	assert.Equal(t, 4, rows[0].Points)

	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, 3, rows[1].TeamID)
	assert.Equal(t, 1, rows[1].Points)

	assert.Equal(t, 3, rows[2].Rank)
	assert.Equal(t, 2, rows[2].TeamID)
	assert.Equal(t, 0, rows[2].Points)
}

func TestGetRankingDenseRanks(t *testing.T) {
	// Две победы с одинаковым счетом и два зеркальных поражения:
	// победители делят ранг 1, проигравшие - ранг 2.
	svc, rrRepo, _ := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Alpha", "Beta", "Gamma", "Delta")...)

	_, err := svc.ConfigureSettings(context.Background(), testEventID, testOwnerID, RoundRobinSettingsInput{
		PointsPerWin: 3, PointsPerDraw: 1, PointsPerLoss: 0,
	})
	require.NoError(t, err)
	_, err = svc.GenerateSchedule(context.Background(), testEventID, testOwnerID)
	require.NoError(t, err)

	matches, err := rrRepo.ListByEvent(context.Background(), testEventID)
	require.NoError(t, err)
	for _, m := range matches {
		if m.Team1ID == 1 && m.Team2ID == 2 {
			_, err = svc.SubmitResult(context.Background(), testEventID, testOwnerID, m.ID, 1, 0)
			require.NoError(t, err)
		}
		if m.Team1ID == 3 && m.Team2ID == 4 {
			_, err = svc.SubmitResult(context.Background(), testEventID, testOwnerID, m.ID, 1, 0)
			require.NoError(t, err)
		}
	}

	rows, err := svc.GetRanking(context.Background(), testEventID)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 1, rows[1].Rank)
	assert.Equal(t, 2, rows[2].Rank)
	assert.Equal(t, 2, rows[3].Rank)

	// При полном равенстве порядок стабилен по ID команды.
	assert.Equal(t, 1, rows[0].TeamID)
	assert.Equal(t, 3, rows[1].TeamID)
	assert.Equal(t, 2, rows[2].TeamID)
	assert.Equal(t, 4, rows[3].TeamID)
}

func TestGetScheduleIncludesTeamNames(t *testing.T) {
	svc, _, _ := newRoundRobinFixture(t, models.FormatRoundRobin, approvedTeams("Alpha", "Beta")...)
	_, err := svc.GenerateSchedule(context.Background(), testEventID, testOwnerID)
	require.NoError(t, err)

	views, err := svc.GetSchedule(context.Background(), testEventID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Alpha", views[0].Team1Name)
	assert.Equal(t, "Beta", views[0].Team2Name)
	assert.Equal(t, models.MatchStatusPending, views[0].Status)
}
