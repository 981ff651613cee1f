package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"timetrack/internal/common"
	"timetrack/internal/domain/model"
	"timetrack/internal/domain/repository"
	"timetrack/internal/platform/events"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type TimerService struct {
	timerRepo repository.TimerRepository
	publisher events.Publisher
	clock     clockwork.Clock
}

func NewTimerService(timerRepo repository.TimerRepository, publisher events.Publisher, clock clockwork.Clock) *TimerService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &TimerService{timerRepo: timerRepo, publisher: publisher, clock: clock}
}

type CreateTimerRequest struct {
	Description string `json:"description"`
}

type StopTimerResponse struct {
	Message string       `json:"message"`
	Timer   *model.Timer `json:"timer"`
}

func (s *TimerService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

func (s *TimerService) CreateTimer(ctx context.Context, ownerID, description string) (*model.Timer, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, common.NewError(common.ErrBadRequest, "Description is required")
	}

	timer := &model.Timer{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		Description: description,
		Start:       s.now(),
		IsActive:    true,
	}
	if err := s.timerRepo.Create(ctx, timer); err != nil {
		return nil, fmt.Errorf("failed to create timer: %v: %w", err, common.ErrInternalServer)
	}

	s.publish(ctx, events.TimerCreated, *timer)
	return timer, nil
}

// StopTimer checks, in order: id shape, existence, ownership, active state.
// The store write is conditional on the timer still being active, so of two
// concurrent stops exactly one succeeds.
func (s *TimerService) StopTimer(ctx context.Context, timerID, requesterID string) (*model.Timer, error) {
	parsed, err := uuid.Parse(timerID)
	if err != nil {
		return nil, common.NewError(common.ErrBadRequest, "Invalid timer ID")
	}
	// stores key on the canonical hyphenated form
	timerID = parsed.String()

	timer, err := s.timerRepo.FindByID(ctx, timerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewError(common.ErrNotFound, "Timer not found")
		}
		return nil, fmt.Errorf("failed to load timer: %w", err)
	}
	if timer.UserID != requesterID {
		return nil, common.NewError(common.ErrForbidden, "Access to this timer is denied")
	}
	if !timer.IsActive {
		return nil, errAlreadyStopped
	}

	end := s.now()
	duration := model.Elapsed(timer.Start, &end, false, end)
	stopped, err := s.timerRepo.Stop(ctx, timer.ID, end, duration)
	if err != nil {
		return nil, fmt.Errorf("failed to stop timer: %w", err)
	}
	if !stopped {
		return nil, errAlreadyStopped
	}

	timer.End = &end
	timer.IsActive = false
	timer.DurationInSeconds = duration

	s.publish(ctx, events.TimerStopped, *timer)
	return timer, nil
}

var errAlreadyStopped = common.NewError(common.ErrBadRequest, "Timer is already stopped")

// ListTimers returns the owner's timers with live elapsed time on the active
// ones. It never writes.
func (s *TimerService) ListTimers(ctx context.Context, ownerID string) ([]model.Timer, error) {
	timers, err := s.timerRepo.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timers: %w", err)
	}
	return model.OverlayLiveDurations(timers, s.clock.Now()), nil
}

// Snapshot returns every timer in the store, overlaid like ListTimers.
func (s *TimerService) Snapshot(ctx context.Context) ([]model.Timer, error) {
	timers, err := s.timerRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot timers: %w", err)
	}
	return model.OverlayLiveDurations(timers, s.clock.Now()), nil
}

func (s *TimerService) publish(ctx context.Context, eventType string, timer model.Timer) {
	if err := s.publisher.PublishTimer(ctx, eventType, timer); err != nil {
		log.Warn().Err(err).Str("event", eventType).Str("timer_id", timer.ID).Msg("timer event not published")
	}
}
