package services

import (
	"context"
	"log/slog"

	"github.com/mbessolov/tourney-engine/models"
	"github.com/mbessolov/tourney-engine/realtime"
	"github.com/mbessolov/tourney-engine/repositories"
)

type EventService interface {
	GetEvent(ctx context.Context, eventID int) (*models.Event, error)
	FinishEvent(ctx context.Context, eventID, callerID int) (*models.Event, error)
}

type eventService struct {
	tx        repositories.Transactor
	guard     eventGuard
	eventRepo repositories.EventRepository
	notifier  broadcaster
	logger    *slog.Logger
}

func NewEventService(
	tx repositories.Transactor,
	eventRepo repositories.EventRepository,
	hub *realtime.Hub,
	logger *slog.Logger,
) EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventService{
		tx:        tx,
		guard:     eventGuard{eventRepo: eventRepo},
		eventRepo: eventRepo,
		notifier:  broadcaster{hub: hub},
		logger:    logger,
	}
}

func (s *eventService) GetEvent(ctx context.Context, eventID int) (*models.Event, error) {
	return s.guard.loadEvent(ctx, eventID)
}

// FinishEvent переводит событие в терминальный finished. Доступно владельцу
// для любого формата; единственная мутация статуса события в движке.
// Переход в canceled принадлежит внешней подсистеме событий.
func (s *eventService) FinishEvent(ctx context.Context, eventID, callerID int) (*models.Event, error) {
	event, err := s.guard.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != callerID {
		return nil, ErrNotEventOwner
	}
	if event.Status == models.EventStatusFinished {
		return nil, ErrEventFinished
	}

	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		return s.eventRepo.UpdateStatus(ctx, tx, eventID, models.EventStatusFinished)
	})
	if err != nil {
		return nil, err
	}

	event.Status = models.EventStatusFinished
	s.logger.Info("event finished", slog.Int("event_id", eventID))
	s.notifier.notify(eventID, realtime.MessageEventFinished, nil)
	return event, nil
}
