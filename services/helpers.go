package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbessolov/tourney-engine/models"
	"github.com/mbessolov/tourney-engine/realtime"
	"github.com/mbessolov/tourney-engine/repositories"
)

// eventGuard проверяет предусловия мутаций: владелец, формат, статус.
// Это общая часть диспетчера форматов, встраиваемая в каждый сервис.
type eventGuard struct {
	eventRepo repositories.EventRepository
}

// ownedEvent загружает событие и требует, чтобы вызывающий был владельцем,
// формат совпадал и событие не было завершено. Используется всеми мутациями,
// кроме команды finish (у нее нет требования к формату).
func (g eventGuard) ownedEvent(ctx context.Context, eventID, callerID int, format models.EventFormat) (*models.Event, error) {
	event, err := g.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != callerID {
		return nil, ErrNotEventOwner
	}
	if event.Format != format {
		return nil, fmt.Errorf("%w: event %d has format %q", ErrFormatMismatch, eventID, event.Format)
	}
	if event.Status == models.EventStatusFinished {
		return nil, ErrEventFinished
	}
	return event, nil
}

func (g eventGuard) loadEvent(ctx context.Context, eventID int) (*models.Event, error) {
	event, err := g.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}
	return event, nil
}

// broadcaster - опциональная рассылка live-обновлений; nil hub выключает ее.
type broadcaster struct {
	hub *realtime.Hub
}

func (b broadcaster) notify(eventID int, messageType string, payload interface{}) {
	if b.hub == nil {
		return
	}
	b.hub.BroadcastEvent(eventID, messageType, payload)
}

func teamIDs(teams []*models.Team) []int {
	ids := make([]int, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	return ids
}

func teamNames(teams []*models.Team) map[int]string {
	names := make(map[int]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}
	return names
}

func teamName(names map[int]string, teamID int) string {
	if name, ok := names[teamID]; ok {
		return name
	}
	return fmt.Sprintf("Team %d", teamID)
}

func validScore(score int) bool {
	return score >= 0
}

// denseRank проставляет плотные ранги по уже отсортированному срезу:
// равные по ключу соседи делят ранг, следующий отличный ключ получает
// предыдущий ранг + 1 (1,1,2 - без пропусков).
func denseRank(n int, equal func(i, j int) bool, assign func(i, rank int)) {
	rank := 0
	for i := 0; i < n; i++ {
		if i == 0 || !equal(i-1, i) {
			rank++
		}
		assign(i, rank)
	}
}

