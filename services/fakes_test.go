package services

import (
	"context"
	"sort"
	"sync"

	"github.com/mbessolov/tourney-engine/brackets"
	"github.com/mbessolov/tourney-engine/models"
	"github.com/mbessolov/tourney-engine/repositories"
)

// fakeTransactor сериализует все транзакции одним мьютексом - это поведение
// advisory-блокировки генерации, которого в in-memory фейках иначе нет.
type fakeTransactor struct {
	mu sync.Mutex
}

func (t *fakeTransactor) WithinTx(_ context.Context, fn func(tx repositories.SQLExecutor) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(nil)
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[int]*models.Event
	teams  map[int][]*models.Team
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		events: make(map[int]*models.Event),
		teams:  make(map[int][]*models.Team),
	}
}

func (r *fakeEventRepo) addEvent(event models.Event, teams ...*models.Team) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = &event
	r.teams[event.ID] = teams
}

func (r *fakeEventRepo) GetByID(_ context.Context, id int) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	copied := *event
	return &copied, nil
}

func (r *fakeEventRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.EventStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	event.Status = status
	return nil
}

func (r *fakeEventRepo) ListApprovedTeams(_ context.Context, eventID int) ([]*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Team(nil), r.teams[eventID]...), nil
}

type fakeRoundRobinRepo struct {
	mu       sync.Mutex
	nextID   int
	matches  map[int]*models.RoundRobinMatch
	settings map[int]*models.RoundRobinSettings
}

func newFakeRoundRobinRepo() *fakeRoundRobinRepo {
	return &fakeRoundRobinRepo{
		matches:  make(map[int]*models.RoundRobinMatch),
		settings: make(map[int]*models.RoundRobinSettings),
	}
}

func (r *fakeRoundRobinRepo) LockEventForGeneration(_ context.Context, _ repositories.SQLExecutor, _ int) error {
	return nil
}

func (r *fakeRoundRobinRepo) CountByEvent(_ context.Context, _ repositories.SQLExecutor, eventID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.matches {
		if m.EventID == eventID {
			count++
		}
	}
	return count, nil
}

func (r *fakeRoundRobinRepo) CreateMatches(_ context.Context, _ repositories.SQLExecutor, eventID int, pairs []brackets.Pair) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pair := range pairs {
		for _, m := range r.matches {
			if m.EventID == eventID && m.Team1ID == pair.Team1ID && m.Team2ID == pair.Team2ID {
				return 0, repositories.ErrRoundRobinAlreadyGenerated
			}
		}
		r.nextID++
		r.matches[r.nextID] = &models.RoundRobinMatch{
			ID:      r.nextID,
			EventID: eventID,
			Team1ID: pair.Team1ID,
			Team2ID: pair.Team2ID,
			Status:  models.MatchStatusPending,
		}
	}
	return len(pairs), nil
}

func (r *fakeRoundRobinRepo) ListByEvent(_ context.Context, eventID int) ([]*models.RoundRobinMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matches := make([]*models.RoundRobinMatch, 0)
	for _, m := range r.matches {
		if m.EventID == eventID {
			copied := *m
			matches = append(matches, &copied)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func (r *fakeRoundRobinRepo) GetMatchByID(_ context.Context, _ repositories.SQLExecutor, id int, _ bool) (*models.RoundRobinMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrRoundRobinMatchNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeRoundRobinRepo) UpdateResult(_ context.Context, _ repositories.SQLExecutor, id, team1Score, team2Score int, winnerID *int, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrRoundRobinMatchNotFound
	}
	s1, s2 := team1Score, team2Score
	m.Team1Score = &s1
	m.Team2Score = &s2
	m.WinnerID = copyIntPtr(winnerID)
	m.Status = status
	return nil
}

func (r *fakeRoundRobinRepo) GetSettings(_ context.Context, eventID int) (*models.RoundRobinSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	settings, ok := r.settings[eventID]
	if !ok {
		return nil, repositories.ErrRoundRobinSettingsNotFound
	}
	copied := *settings
	return &copied, nil
}

func (r *fakeRoundRobinRepo) UpsertSettings(_ context.Context, settings *models.RoundRobinSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *settings
	r.settings[settings.EventID] = &copied
	return nil
}

type fakeKnockoutRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]*models.KnockoutMatch
}

func newFakeKnockoutRepo() *fakeKnockoutRepo {
	return &fakeKnockoutRepo{matches: make(map[int]*models.KnockoutMatch)}
}

func (r *fakeKnockoutRepo) LockEventForGeneration(_ context.Context, _ repositories.SQLExecutor, _ int) error {
	return nil
}

func (r *fakeKnockoutRepo) CountByEvent(_ context.Context, _ repositories.SQLExecutor, eventID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.matches {
		if m.EventID == eventID {
			count++
		}
	}
	return count, nil
}

func (r *fakeKnockoutRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.KnockoutMatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.EventID == match.EventID && m.RoundLabel == match.RoundLabel && m.MatchNumber == match.MatchNumber {
			return repositories.ErrKnockoutAlreadyGenerated
		}
	}
	r.nextID++
	match.ID = r.nextID
	r.matches[match.ID] = cloneKnockoutMatch(match)
	return nil
}

func (r *fakeKnockoutRepo) ListByEvent(_ context.Context, eventID int) ([]*models.KnockoutMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matches := make([]*models.KnockoutMatch, 0)
	for _, m := range r.matches {
		if m.EventID == eventID {
			matches = append(matches, cloneKnockoutMatch(m))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].RoundLabel != matches[j].RoundLabel {
			return matches[i].RoundLabel > matches[j].RoundLabel
		}
		return matches[i].MatchNumber < matches[j].MatchNumber
	})
	return matches, nil
}

func (r *fakeKnockoutRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int, _ bool) (*models.KnockoutMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrKnockoutMatchNotFound
	}
	return cloneKnockoutMatch(m), nil
}

func (r *fakeKnockoutRepo) UpdateResult(_ context.Context, _ repositories.SQLExecutor, id, team1Score, team2Score, winnerID int, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrKnockoutMatchNotFound
	}
	s1, s2, w := team1Score, team2Score, winnerID
	m.Team1Score = &s1
	m.Team2Score = &s2
	m.WinnerID = &w
	m.Status = status
	return nil
}

func (r *fakeKnockoutRepo) FindBySourceMatch(_ context.Context, _ repositories.SQLExecutor, eventID, sourceMatchID int, _ bool) (*models.KnockoutMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.EventID != eventID {
			continue
		}
		if (m.Team1SourceMatchID != nil && *m.Team1SourceMatchID == sourceMatchID) ||
			(m.Team2SourceMatchID != nil && *m.Team2SourceMatchID == sourceMatchID) {
			return cloneKnockoutMatch(m), nil
		}
	}
	return nil, repositories.ErrKnockoutMatchNotFound
}

func (r *fakeKnockoutRepo) SetTeamSlot(_ context.Context, _ repositories.SQLExecutor, id, slot, teamID int, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrKnockoutMatchNotFound
	}
	team := teamID
	switch slot {
	case 1:
		m.Team1ID = &team
	case 2:
		m.Team2ID = &team
	default:
		return repositories.ErrKnockoutMatchNotFound
	}
	m.Status = status
	return nil
}

type fakeLeaderboardRepo struct {
	mu      sync.Mutex
	nextID  int
	entries map[[2]int]map[int]*models.LeaderboardScoreEntry // (event, round) -> team -> entry
}

func newFakeLeaderboardRepo() *fakeLeaderboardRepo {
	return &fakeLeaderboardRepo{entries: make(map[[2]int]map[int]*models.LeaderboardScoreEntry)}
}

func (r *fakeLeaderboardRepo) UpsertEntry(_ context.Context, _ repositories.SQLExecutor, entry *models.LeaderboardScoreEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int{entry.EventID, entry.RoundNumber}
	round, ok := r.entries[key]
	if !ok {
		round = make(map[int]*models.LeaderboardScoreEntry)
		r.entries[key] = round
	}
	if existing, ok := round[entry.TeamID]; ok {
		existing.Points = entry.Points
		existing.LastModifiedAt = entry.LastModifiedAt
		entry.ID = existing.ID
		return nil
	}
	r.nextID++
	entry.ID = r.nextID
	copied := *entry
	round[entry.TeamID] = &copied
	return nil
}

func (r *fakeLeaderboardRepo) ListByEvent(_ context.Context, eventID int) ([]*models.LeaderboardScoreEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]*models.LeaderboardScoreEntry, 0)
	for key, round := range r.entries {
		if key[0] != eventID {
			continue
		}
		for _, entry := range round {
			copied := *entry
			entries = append(entries, &copied)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RoundNumber != entries[j].RoundNumber {
			return entries[i].RoundNumber < entries[j].RoundNumber
		}
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].TeamID < entries[j].TeamID
	})
	return entries, nil
}

func cloneKnockoutMatch(m *models.KnockoutMatch) *models.KnockoutMatch {
	copied := *m
	copied.Team1ID = copyIntPtr(m.Team1ID)
	copied.Team2ID = copyIntPtr(m.Team2ID)
	copied.Team1SourceMatchID = copyIntPtr(m.Team1SourceMatchID)
	copied.Team2SourceMatchID = copyIntPtr(m.Team2SourceMatchID)
	copied.Team1Score = copyIntPtr(m.Team1Score)
	copied.Team2Score = copyIntPtr(m.Team2Score)
	copied.WinnerID = copyIntPtr(m.WinnerID)
	return &copied
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
