package console

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-user-registration/internal/domain"
)

type serializer interface {
	Serialize(ctx context.Context, e domain.Event) ([]byte, error)
}

// Publisher logs envelopes instead of sending them. It serializes exactly
// like the broker publisher, so a missing code fails the same way.
type Publisher struct {
	ser serializer
	log *slog.Logger
}

func NewPublisher(ser serializer, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{ser: ser, log: log}
}

func (p *Publisher) Publish(ctx context.Context, e domain.Event) error {
	body, err := p.ser.Serialize(ctx, e)
	if err != nil {
		return err
	}
	p.log.Info("event published", "event_type", e.EventType(), "event_id", e.EventID(), "envelope", string(body))
	return nil
}

func (p *Publisher) PublishAll(ctx context.Context, events []domain.Event) error {
	for i, e := range events {
		if err := p.Publish(ctx, e); err != nil {
			return fmt.Errorf("event %d of %d: %w", i+1, len(events), err)
		}
	}
	return nil
}
