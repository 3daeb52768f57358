package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-user-registration/internal/config"
	"github.com/go-user-registration/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Publisher sends domain events to the configured exchange. Publishes are
// serialized; a publish that hits a closed connection is retried exactly once
// on a fresh connection.
type Publisher struct {
	cfg      config.BrokerConfig
	topology Topology
	dial     Dialer
	ser      *Serializer
	log      *slog.Logger

	mu sync.Mutex
	s  *session
}

type PublisherDeps struct {
	Config     config.BrokerConfig
	Serializer *Serializer
	Dialer     Dialer // defaults to Dial
	Logger     *slog.Logger
}

func NewPublisher(deps PublisherDeps) *Publisher {
	dial := deps.Dialer
	if dial == nil {
		dial = Dial
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		cfg: deps.Config,
		topology: Topology{
			Exchange:   deps.Config.Exchange,
			Queue:      deps.Config.Queue,
			RoutingKey: deps.Config.RoutingKey,
		},
		dial: dial,
		ser:  deps.Serializer,
		log:  log,
	}
}

// Connect dials, declares the topology and opens the publishing channel.
// Calling it again replaces the current handles.
func (p *Publisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked(ctx)
}

func (p *Publisher) connectLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := openSession(p.dial, p.cfg.URL, p.topology)
	if err != nil {
		return err
	}
	old := p.s
	p.s = s
	if old != nil {
		if err := old.release(nil); err != nil {
			p.log.Debug("release previous broker session", "error", err)
		}
	}
	p.log.Info("publisher connected", "exchange", p.topology.Exchange, "routing_key", p.topology.RoutingKey)
	return nil
}

// Publish serializes e and returns once the broker confirmed it.
func (p *Publisher) Publish(ctx context.Context, e domain.Event) (err error) {
	ctx, span := tracer.Start(ctx, "publish "+e.EventType(),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attrSystem.String("rabbitmq"),
			attrDestination.String(p.topology.Exchange),
			attrMessageID.String(e.EventID()),
			attrEventType.String(e.EventType()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := p.ser.Serialize(ctx, e)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.EventID(),
		Type:         e.EventType(),
		Timestamp:    e.OccurredAt(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.sendLocked(ctx, msg)
	if err == nil {
		messagesPublished.Add(ctx, 1, metric.WithAttributes(attrEventType.String(e.EventType())))
		return nil
	}
	if !errors.Is(err, ErrConnectionClosed) {
		return fmt.Errorf("publish %s: %w", e.EventID(), err)
	}

	p.log.Warn("publish hit closed connection, retrying once",
		"event_id", e.EventID(), "retry_in", p.cfg.RetryInterval, "error", err)
	publishRetries.Add(ctx, 1)
	if err := sleep(ctx, p.cfg.RetryInterval); err != nil {
		return err
	}
	if err := p.connectLocked(ctx); err != nil {
		return fmt.Errorf("reconnect publisher: %w", err)
	}
	if err := p.sendLocked(ctx, msg); err != nil {
		return fmt.Errorf("publish %s after reconnect: %w", e.EventID(), err)
	}
	messagesPublished.Add(ctx, 1, metric.WithAttributes(attrEventType.String(e.EventType())))
	return nil
}

// PublishAll publishes events in order and stops at the first failure.
// Events already sent stay sent.
func (p *Publisher) PublishAll(ctx context.Context, events []domain.Event) error {
	for i, e := range events {
		if err := p.Publish(ctx, e); err != nil {
			return fmt.Errorf("event %d of %d: %w", i+1, len(events), err)
		}
	}
	return nil
}

// PurgeQueue drops every ready message in the queue and returns the count.
func (p *Publisher) PurgeQueue(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.s == nil {
		return 0, ErrNotConnected
	}
	n, err := p.s.mgmt.QueuePurge(p.topology.Queue, false)
	if err != nil {
		return 0, fmt.Errorf("purge queue %q: %w", p.topology.Queue, classify(err))
	}
	return n, nil
}

// Close releases the publishing channel, removes the binding unless
// KeepBindingOnClose is set, then closes the management channel and the
// connection. All steps run; their errors are joined.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.s == nil {
		return nil
	}
	var unbind *Topology
	if !p.cfg.KeepBindingOnClose {
		unbind = &p.topology
	}
	err := p.s.release(unbind)
	p.s = nil
	return err
}

func (p *Publisher) sendLocked(ctx context.Context, msg amqp.Publishing) error {
	if p.s == nil {
		return ErrNotConnected
	}
	return classify(p.s.work.PublishConfirmed(ctx, p.topology.Exchange, p.topology.RoutingKey, msg))
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
