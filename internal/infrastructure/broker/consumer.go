package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-user-registration/internal/config"
	"github.com/go-user-registration/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// State is the consumer lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateDeclaring
	StateConsuming
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateDeclaring:
		return "declaring"
	case StateConsuming:
		return "consuming"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Handler acts on one decoded envelope. A non-nil error requeues the message.
type Handler interface {
	Handle(ctx context.Context, env domain.Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env domain.Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env domain.Envelope) error { return f(ctx, env) }

// Consumer receives envelopes from the configured queue and acknowledges them
// after the handler returns. It reconnects for as long as ctx is alive.
type Consumer struct {
	cfg      config.BrokerConfig
	topology Topology
	dial     Dialer
	handler  Handler
	log      *slog.Logger
	state    atomic.Int32
}

type ConsumerDeps struct {
	Config  config.BrokerConfig
	Handler Handler
	Dialer  Dialer // defaults to Dial
	Logger  *slog.Logger
}

func NewConsumer(deps ConsumerDeps) *Consumer {
	dial := deps.Dialer
	if dial == nil {
		dial = Dial
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		cfg: deps.Config,
		topology: Topology{
			Exchange:   deps.Config.Exchange,
			Queue:      deps.Config.Queue,
			RoutingKey: deps.Config.RoutingKey,
		},
		dial:    dial,
		handler: deps.Handler,
		log:     log,
	}
}

func (c *Consumer) State() State { return State(c.state.Load()) }

func (c *Consumer) setState(s State) { c.state.Store(int32(s)) }

// Run consumes until ctx is cancelled, which starts a bounded drain. Lost
// connections and dial failures are retried after RetryInterval without
// limit. Any other failure stops the consumer and is returned.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.setState(StateStopped)
	for {
		err := c.runOnce(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		if !errors.Is(err, ErrConnectionClosed) && !errors.Is(err, ErrDial) {
			c.log.Error("consumer stopped", "error", err)
			return err
		}
		c.setState(StateDisconnected)
		c.log.Warn("consumer disconnected, reconnecting", "retry_in", c.cfg.RetryInterval, "error", err)
		reconnects.Add(ctx, 1)
		if err := sleep(ctx, c.cfg.RetryInterval); err != nil {
			return nil
		}
	}
}

// runOnce is one connection attempt. It returns nil after a drain, an error
// wrapping ErrConnectionClosed or ErrDial when the attempt should be retried,
// and any other error when it should not.
func (c *Consumer) runOnce(ctx context.Context) error {
	c.setState(StateDeclaring)
	s, err := openSession(c.dial, c.cfg.URL, c.topology)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.release(nil); err != nil {
			c.log.Debug("release consumer session", "error", err)
		}
	}()

	if c.cfg.Prefetch > 0 {
		if err := s.work.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set prefetch: %w", classify(err))
		}
	}
	deliveries, err := s.work.Consume(c.topology.Queue, c.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %q: %w", c.topology.Queue, classify(err))
	}
	closed := s.conn.NotifyClose(make(chan *amqp.Error, 1))

	// The loop must outlive ctx so a stop request can drain it.
	loopCtx, cancelLoop := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelLoop()
	stop := make(chan struct{})
	loopDone := make(chan error, 1)
	go func() { loopDone <- c.receive(loopCtx, deliveries, stop) }()

	c.setState(StateConsuming)
	c.log.Info("consumer running", "queue", c.topology.Queue, "consumer_tag", c.cfg.ConsumerTag)

	select {
	case <-ctx.Done():
		c.drain(s.work, stop, cancelLoop, loopDone)
		return nil
	case amqpErr, ok := <-closed:
		cancelLoop()
		if !ok || amqpErr == nil {
			return fmt.Errorf("%w: connection closed", ErrConnectionClosed)
		}
		return fmt.Errorf("%w: %v", ErrConnectionClosed, amqpErr)
	case err := <-loopDone:
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: delivery channel closed", ErrConnectionClosed)
	}
}

// drain stops new deliveries and waits up to DrainTimeout for the loop. Only
// the in-flight message is finished; prefetched deliveries stay unacked and
// return to the queue when the channel closes. On timeout the loop is
// cancelled and its in-flight message stays unacked too.
func (c *Consumer) drain(ch Channel, stop chan struct{}, cancelLoop context.CancelFunc, loopDone <-chan error) {
	c.setState(StateDraining)
	c.log.Info("stopping consumer", "drain_timeout", c.cfg.DrainTimeout)
	close(stop)
	if err := ch.Cancel(c.cfg.ConsumerTag, false); err != nil {
		c.log.Warn("cancel consumer", "error", err)
	}
	timer := time.NewTimer(c.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case err := <-loopDone:
		if err != nil {
			c.log.Warn("receive loop ended with error while draining", "error", err)
		}
	case <-timer.C:
		cancelLoop()
		c.log.Warn("drain timed out, in-flight message left for redelivery")
	}
}

func (c *Consumer) receive(ctx context.Context, deliveries <-chan amqp.Delivery, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			// select picks randomly among ready cases; a buffered delivery
			// must not win over a stop request.
			select {
			case <-stop:
				return nil
			default:
			}
			if err := c.process(ctx, d, stop); err != nil {
				return err
			}
		}
	}
}

// process decodes, handles and settles one delivery. Malformed bodies are
// acked and skipped; handler failures are requeued after RetryInterval.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery, stop <-chan struct{}) (err error) {
	ctx, span := tracer.Start(ctx, "consume "+c.topology.Queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attrSystem.String("rabbitmq"),
			attrDestination.String(c.topology.Queue),
			attrMessageID.String(d.MessageId),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var env domain.Envelope
	if jerr := json.Unmarshal(d.Body, &env); jerr != nil || env.EventType == "" {
		c.log.Warn("unhandled event type", "message_id", d.MessageId, "delivery_tag", d.DeliveryTag, "error", jerr)
		return c.settle(ctx, "skipped", d.Ack(false))
	}
	span.SetAttributes(attrEventType.String(env.EventType))

	if herr := c.handler.Handle(ctx, env); herr != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.log.Error("handle envelope, requeueing", "event_id", env.EventID, "event_type", env.EventType,
			"requeue_in", c.cfg.RetryInterval, "error", herr)
		if !c.requeueDelay(ctx, stop) {
			return nil
		}
		return c.settle(ctx, "requeued", d.Nack(false, true))
	}
	if ctx.Err() != nil {
		c.log.Warn("drain timed out before ack", "event_id", env.EventID)
		return nil
	}
	return c.settle(ctx, "acked", d.Ack(false))
}

// requeueDelay holds a failed delivery for RetryInterval so a persistent
// handler failure does not spin through the queue's delivery limit. A stop
// request ends the pause early; false means the loop was cancelled and the
// message must be left unacked.
func (c *Consumer) requeueDelay(ctx context.Context, stop <-chan struct{}) bool {
	timer := time.NewTimer(c.cfg.RetryInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return true
	case <-timer.C:
		return true
	}
}

func (c *Consumer) settle(ctx context.Context, outcome string, err error) error {
	if err != nil {
		return fmt.Errorf("settle delivery (%s): %w", outcome, classify(err))
	}
	messagesConsumed.Add(ctx, 1, metric.WithAttributes(attrOutcome.String(outcome)))
	return nil
}
