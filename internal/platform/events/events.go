package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"timetrack/internal/domain/model"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	TimerCreated = "timer.created"
	TimerStopped = "timer.stopped"
)

// TimerEvent is the payload published on <prefix>.timer.created and
// <prefix>.timer.stopped.
type TimerEvent struct {
	Type       string      `json:"type"`
	Timer      model.Timer `json:"timer"`
	OccurredAt time.Time   `json:"occurredAt"`
}

type Publisher interface {
	PublishTimer(ctx context.Context, eventType string, timer model.Timer) error
	Close()
}

type conn interface {
	Publish(subject string, data []byte) error
}

type NATSPublisher struct {
	nc     conn
	close  func()
	prefix string
	now    func() time.Time
}

// ConnectNATS dials url and returns a publisher for subjects under prefix.
func ConnectNATS(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("timetrack"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	log.Info().Str("url", url).Str("prefix", prefix).Msg("connected to NATS")
	return newNATSPublisher(nc, func() { nc.Drain() }, prefix), nil
}

func newNATSPublisher(nc conn, closeFn func(), prefix string) *NATSPublisher {
	return &NATSPublisher{nc: nc, close: closeFn, prefix: prefix, now: time.Now}
}

func (p *NATSPublisher) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *NATSPublisher) PublishTimer(ctx context.Context, eventType string, timer model.Timer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(TimerEvent{Type: eventType, Timer: timer, OccurredAt: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	subject := p.Subject(eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if p.close != nil {
		p.close()
	}
}

// Noop is used when NATS_URL is empty.
type Noop struct{}

func (Noop) PublishTimer(context.Context, string, model.Timer) error { return nil }

func (Noop) Close() {}
