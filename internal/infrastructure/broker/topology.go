package broker

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names the exchange, queue and binding both processes declare.
type Topology struct {
	Exchange   string
	Queue      string
	RoutingKey string
}

func (t Topology) validate() error {
	var errs []error
	if t.Exchange == "" {
		errs = append(errs, errors.New("exchange name is empty"))
	}
	if t.Queue == "" {
		errs = append(errs, errors.New("queue name is empty"))
	}
	if t.RoutingKey == "" {
		errs = append(errs, errors.New("routing key is empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTopology, errors.Join(errs...))
	}
	return nil
}

// Declare creates a durable topic exchange and a durable quorum queue, then
// binds them with the routing key. Redeclaring identical resources is a no-op
// on the broker side, so both processes run it on every start.
func Declare(ch Channel, t Topology) error {
	if err := t.validate(); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(t.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %q: %w", t.Exchange, classify(err))
	}
	args := amqp.Table{"x-queue-type": "quorum"}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %q: %w", t.Queue, classify(err))
	}
	if err := ch.QueueBind(t.Queue, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %q to %q: %w", t.Queue, t.Exchange, classify(err))
	}
	return nil
}

// session is one connection attempt: the connection, a management channel
// used for topology, and a work channel used to publish or consume.
type session struct {
	conn Connection
	mgmt Channel
	work Channel
}

// openSession acquires handles in order and releases whatever was acquired if
// a later step fails.
func openSession(dial Dialer, url string, t Topology) (*session, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	conn, err := dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDial, err)
	}
	s := &session{conn: conn}
	if s.mgmt, err = conn.Channel(); err != nil {
		return nil, s.abort(fmt.Errorf("open management channel: %w", classify(err)))
	}
	if err := Declare(s.mgmt, t); err != nil {
		return nil, s.abort(err)
	}
	if s.work, err = conn.Channel(); err != nil {
		return nil, s.abort(fmt.Errorf("open channel: %w", classify(err)))
	}
	return s, nil
}

func (s *session) abort(err error) error {
	_ = s.release(nil)
	return err
}

// release closes the work channel, removes the binding when unbind is set,
// then closes the management channel and the connection. Every step runs even
// when an earlier one fails.
func (s *session) release(unbind *Topology) error {
	var errs []error
	if s.work != nil {
		if err := s.work.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if unbind != nil && s.mgmt != nil {
		if err := s.mgmt.QueueUnbind(unbind.Queue, unbind.RoutingKey, unbind.Exchange, nil); err != nil {
			errs = append(errs, fmt.Errorf("unbind queue: %w", err))
		}
	}
	if s.mgmt != nil {
		if err := s.mgmt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close management channel: %w", err))
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
