package services

import (
	"context"
	"errors"
	"sync"
	"time"
)

const defaultNotifyTimeout = 10 * time.Second

// Notifier publishes buyer notifications without blocking the request path.
// Publish failures are logged, never surfaced to the caller; a lost
// confirmation email must not fail a captured payment.
type Notifier struct {
	publisher NotificationPublisher
	logger    func(context.Context, string, map[string]any)
	clock     func() time.Time
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NotifierOption customises notifier behaviour.
type NotifierOption func(*Notifier)

// WithNotifyTimeout bounds how long a background publish may take.
func WithNotifyTimeout(timeout time.Duration) NotifierOption {
	return func(n *Notifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

// WithNotifierLogger injects the event logger.
func WithNotifierLogger(logger func(context.Context, string, map[string]any)) NotifierOption {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithNotifierClock injects a custom clock primarily for tests.
func WithNotifierClock(clock func() time.Time) NotifierOption {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// NewNotifier constructs a notifier over the given publisher.
func NewNotifier(publisher NotificationPublisher, opts ...NotifierOption) (*Notifier, error) {
	if publisher == nil {
		return nil, errors.New("notifier: publisher is required")
	}
	n := &Notifier{
		publisher: publisher,
		logger:    func(context.Context, string, map[string]any) {},
		clock:     time.Now,
		timeout:   defaultNotifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n, nil
}

// Notify queues the message in the background. The publish outlives the
// request context so an early client disconnect cannot drop it.
func (n *Notifier) Notify(ctx context.Context, msg NotificationMessage) {
	if n == nil || n.publisher == nil {
		return
	}
	if msg.QueuedAt.IsZero() {
		msg.QueuedAt = n.clock().UTC()
	}

	detached := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		publishCtx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()

		id, err := n.publisher.PublishNotification(publishCtx, msg)
		if err != nil {
			n.logger(publishCtx, "notifications.publish.failed", map[string]any{
				"kind":  string(msg.Kind),
				"error": err.Error(),
			})
			return
		}
		n.logger(publishCtx, "notifications.publish.queued", map[string]any{
			"kind":      string(msg.Kind),
			"messageId": id,
		})
	}()
}

// Wait blocks until all in-flight publishes finish. Used during shutdown.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
