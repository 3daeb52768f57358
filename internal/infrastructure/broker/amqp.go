package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrConnectionClosed is the transient class: the broker connection or
	// channel went away. Publishers retry it once, consumers retry forever.
	ErrConnectionClosed = errors.New("broker connection closed")
	// ErrDial means the broker could not be reached at all.
	ErrDial = errors.New("broker dial failed")
	// ErrInvalidTopology is a configuration error and is never retried.
	ErrInvalidTopology = errors.New("invalid broker topology")
	// ErrNotConfirmed means the broker nacked a publish.
	ErrNotConfirmed = errors.New("publish not confirmed by broker")
	// ErrNotConnected is returned when Publish or PurgeQueue run before Connect.
	ErrNotConnected = errors.New("publisher not connected")
)

// Connection is the subset of *amqp.Connection the broker package uses.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	IsClosed() bool
	Close() error
}

// Channel is the subset of *amqp.Channel the broker package uses, plus a
// confirmed publish.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	QueueUnbind(name, key, exchange string, args amqp.Table) error
	QueuePurge(name string, noWait bool) (int, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	// PublishConfirmed returns only after the broker acked the message.
	PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a broker connection.
type Dialer func(url string) (Connection, error)

// Dial is the production Dialer.
func Dial(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &amqpConn{Connection: conn}, nil
}

type amqpConn struct {
	*amqp.Connection
}

func (c *amqpConn) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return &amqpChannel{Channel: ch}, nil
}

type amqpChannel struct {
	*amqp.Channel
	confirmOnce sync.Once
	confirmErr  error
}

func (c *amqpChannel) PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	c.confirmOnce.Do(func() {
		c.confirmErr = c.Channel.Confirm(false)
	})
	if c.confirmErr != nil {
		return fmt.Errorf("enable publisher confirms: %w", c.confirmErr)
	}
	dc, err := c.Channel.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return err
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}
	return confirmOutcome(acked, c.Channel.IsClosed())
}

// confirmOutcome maps a resolved confirmation to an error. amqp091 resolves
// pending confirms as nacks when the channel closes, so a nack on a closed
// channel is a lost connection rather than a broker rejection.
func confirmOutcome(acked, channelClosed bool) error {
	switch {
	case acked:
		return nil
	case channelClosed:
		return fmt.Errorf("%w: channel closed before confirm", ErrConnectionClosed)
	default:
		return ErrNotConfirmed
	}
}

// isConnectionClosed reports whether err belongs to the transient class.
func isConnectionClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionClosed) || errors.Is(err, amqp.ErrClosed) {
		return true
	}
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return amqpErr.Code == amqp.ConnectionForced || amqpErr.Code == amqp.FrameError
	}
	return false
}

// classify tags transient failures with ErrConnectionClosed so callers can
// branch with errors.Is.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrConnectionClosed) {
		return err
	}
	if isConnectionClosed(err) {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return err
}
