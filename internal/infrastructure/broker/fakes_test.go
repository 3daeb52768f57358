package broker

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// callLog records calls across every fake that shares it, in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeChannel struct {
	name string
	log  *callLog

	mu          sync.Mutex
	exchangeErr error
	queueErr    error
	bindErr     error
	unbindErr   error
	closeErr    error
	qosErr      error
	consumeErr  error
	publishErrs []error
	published   []amqp.Publishing
	exchangeKnd string
	queueArgs   amqp.Table
	purgeCount  int
	cancelled   bool

	deliveries chan amqp.Delivery
	closeOnce  sync.Once
}

func newFakeChannel(name string, log *callLog) *fakeChannel {
	return &fakeChannel{name: name, log: log, deliveries: make(chan amqp.Delivery, 16)}
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.log.add(c.name + ".ExchangeDeclare")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchangeKnd = kind
	return c.exchangeErr
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.log.add(c.name + ".QueueDeclare")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueArgs = args
	return amqp.Queue{Name: name}, c.queueErr
}

func (c *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	c.log.add(c.name + ".QueueBind")
	return c.bindErr
}

func (c *fakeChannel) QueueUnbind(name, key, exchange string, args amqp.Table) error {
	c.log.add(c.name + ".QueueUnbind")
	return c.unbindErr
}

func (c *fakeChannel) QueuePurge(name string, noWait bool) (int, error) {
	c.log.add(c.name + ".QueuePurge")
	return c.purgeCount, nil
}

func (c *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	c.log.add(c.name + ".Qos")
	return c.qosErr
}

func (c *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	c.log.add(c.name + ".Consume")
	if c.consumeErr != nil {
		return nil, c.consumeErr
	}
	return c.deliveries, nil
}

func (c *fakeChannel) Cancel(consumer string, noWait bool) error {
	c.log.add(c.name + ".Cancel")
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.deliveries) })
	return nil
}

func (c *fakeChannel) PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	c.log.add(c.name + ".Publish")
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.publishErrs) > 0 {
		err := c.publishErrs[0]
		c.publishErrs = c.publishErrs[1:]
		if err != nil {
			return err
		}
	}
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.log.add(c.name + ".Close")
	c.closeOnce.Do(func() { close(c.deliveries) })
	return c.closeErr
}

func (c *fakeChannel) publishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func (c *fakeChannel) wasCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// fakeConn hands out a management channel first and a work channel second.
type fakeConn struct {
	log  *callLog
	mgmt *fakeChannel
	work *fakeChannel

	mu         sync.Mutex
	opened     int
	channelErr error
	closeErr   error
	notify     chan *amqp.Error
	closed     bool
}

func newFakeConn(log *callLog) *fakeConn {
	return &fakeConn{
		log:  log,
		mgmt: newFakeChannel("mgmt", log),
		work: newFakeChannel("work", log),
	}
}

func (c *fakeConn) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channelErr != nil {
		return nil, c.channelErr
	}
	c.opened++
	if c.opened == 1 {
		return c.mgmt, nil
	}
	return c.work, nil
}

func (c *fakeConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = receiver
	return receiver
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() error {
	c.log.add("conn.Close")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

// drop simulates the broker closing the connection.
func (c *fakeConn) drop(err *amqp.Error) {
	c.mu.Lock()
	n := c.notify
	c.closed = true
	c.mu.Unlock()
	if n != nil {
		n <- err
		close(n)
	}
}

// fakeDialer returns errs[i] for attempt i when set, otherwise the next
// prepared connection, otherwise a fresh one.
type fakeDialer struct {
	log *callLog

	mu    sync.Mutex
	errs  []error
	ready []*fakeConn
	conns []*fakeConn
	calls int
}

func newFakeDialer(log *callLog, ready ...*fakeConn) *fakeDialer {
	return &fakeDialer{log: log, ready: ready}
}

func (d *fakeDialer) Dial(url string) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	var c *fakeConn
	if len(d.ready) > 0 {
		c, d.ready = d.ready[0], d.ready[1:]
	} else {
		c = newFakeConn(d.log)
	}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

// fakeAcker records settlements of deliveries.
type fakeAcker struct {
	mu       sync.Mutex
	acked    []uint64
	nacked   []uint64
	nackedAt []time.Time
	ackErr   error
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ackErr != nil {
		return a.ackErr
	}
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.nacked = append(a.nacked, tag)
		a.nackedAt = append(a.nackedAt, time.Now())
	}
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcker) ackedTags() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.acked...)
}

func (a *fakeAcker) nackedTags() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.nacked...)
}

func (a *fakeAcker) nackTimes() []time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Time(nil), a.nackedAt...)
}
