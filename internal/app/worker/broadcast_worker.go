package worker

import (
	"context"
	"encoding/json"
	"time"
	"timetrack/internal/api/live"
	"timetrack/internal/domain/model"
	"timetrack/internal/platform/config"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]model.Timer, error)
}

type Registry interface {
	Subscribers() []live.Subscriber
}

// BroadcastWorker pushes the timer snapshot to every live client once per
// interval. Delivery is best effort: a client that is not ready for a tick
// misses it.
type BroadcastWorker struct {
	source   SnapshotSource
	registry Registry
	clock    clockwork.Clock
	interval time.Duration
	scope    string
}

func NewBroadcastWorker(source SnapshotSource, registry Registry, clock clockwork.Clock, interval time.Duration, scope string) *BroadcastWorker {
	if interval <= 0 {
		interval = time.Second
	}
	if scope != config.ScopeAll {
		scope = config.ScopeOwner
	}
	return &BroadcastWorker{
		source:   source,
		registry: registry,
		clock:    clock,
		interval: interval,
		scope:    scope,
	}
}

func (w *BroadcastWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Str("scope", w.scope).Msg("broadcast worker started")
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("broadcast worker stopping")
			return
		case <-ticker.Chan():
			w.Tick(ctx)
		}
	}
}

// Tick runs one broadcast round and reports how many clients accepted the
// payload.
func (w *BroadcastWorker) Tick(ctx context.Context) int {
	subs := w.registry.Subscribers()
	if len(subs) == 0 {
		return 0
	}

	readCtx, cancel := context.WithTimeout(ctx, w.interval)
	timers, err := w.source.Snapshot(readCtx)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("broadcast snapshot failed, waiting for next tick")
		return 0
	}

	payloads, err := w.payloads(timers, subs)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal broadcast payload")
		return 0
	}

	delivered := 0
	for _, sub := range subs {
		if sub.Offer(payloads(sub.OwnerID())) {
			delivered++
		}
	}
	log.Debug().Int("timers", len(timers)).Int("clients", len(subs)).Int("delivered", delivered).Msg("broadcast tick")
	return delivered
}

// payloads returns a lookup from owner id to the serialized message for that
// owner. With scope "all" every owner gets the same bytes.
func (w *BroadcastWorker) payloads(timers []model.Timer, subs []live.Subscriber) (func(string) []byte, error) {
	if w.scope == config.ScopeAll {
		data, err := json.Marshal(model.TimerList{Timers: timers})
		if err != nil {
			return nil, err
		}
		return func(string) []byte { return data }, nil
	}

	byOwner := make(map[string][]model.Timer)
	for _, t := range timers {
		byOwner[t.UserID] = append(byOwner[t.UserID], t)
	}

	encoded := make(map[string][]byte)
	for _, sub := range subs {
		owner := sub.OwnerID()
		if _, done := encoded[owner]; done {
			continue
		}
		list := byOwner[owner]
		if list == nil {
			list = []model.Timer{}
		}
		data, err := json.Marshal(model.TimerList{Timers: list})
		if err != nil {
			return nil, err
		}
		encoded[owner] = data
	}
	return func(owner string) []byte { return encoded[owner] }, nil
}
