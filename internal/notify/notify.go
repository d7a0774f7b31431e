// Package notify delivers invitation notifications to invitees. Delivery is decoupled from
// the request path by a bounded Dispatcher; a full queue drops the notification rather than
// blocking the caller.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	invdomain "orgsession/internal/invitation/domain"
	"orgsession/internal/metrics"
)

// Notifier sends one invitation notification.
type Notifier interface {
	Notify(ctx context.Context, n invdomain.Notification) error
}

// Enqueuer accepts notifications for asynchronous delivery. Enqueue reports whether the
// notification was queued.
type Enqueuer interface {
	Enqueue(n invdomain.Notification) bool
}

// Dispatcher runs a fixed set of workers draining a bounded queue into a Notifier.
type Dispatcher struct {
	notifier Notifier
	queue    chan invdomain.Notification
	timeout  time.Duration
	metrics  *metrics.Metrics
	log      zerolog.Logger

	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// NewDispatcher starts workers goroutines delivering through n. size bounds the queue.
func NewDispatcher(n Notifier, size, workers int, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		notifier: n,
		queue:    make(chan invdomain.Notification, size),
		timeout:  10 * time.Second,
		metrics:  m,
		log:      logger.With().Str("component", "notify").Logger(),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Enqueue queues n without blocking. It returns false when the queue is full or closed.
func (d *Dispatcher) Enqueue(n invdomain.Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.Notify("dropped")
		return false
	}
	select {
	case d.queue <- n:
		d.metrics.Notify("queued")
		return true
	default:
		d.metrics.Notify("dropped")
		d.log.Warn().Str("invitation_id", n.InvitationID).Msg("notification queue full; dropping")
		return false
	}
}

// Close stops accepting work and waits for queued notifications to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.notifier.Notify(ctx, n)
		cancel()
		if err != nil {
			d.metrics.Notify("failed")
			d.log.Error().Err(err).Str("invitation_id", n.InvitationID).Msg("invitation delivery failed")
			continue
		}
		d.metrics.Notify("sent")
	}
}

// LogNotifier writes notifications to the log. It is the development default.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger.With().Str("component", "notify").Logger()}
}

func (l *LogNotifier) Notify(_ context.Context, n invdomain.Notification) error {
	l.log.Info().
		Str("invitation_id", n.InvitationID).
		Str("to", n.InviteeEmail).
		Str("organization", n.OrganizationName).
		Str("link", n.AcceptanceLink).
		Msg("invitation")
	return nil
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n invdomain.Notification) error

func (f Func) Notify(ctx context.Context, n invdomain.Notification) error { return f(ctx, n) }
