package services

import (
	"context"
	"log"
	"sync"
	"time"
)

const notifyTimeout = 5 * time.Second

// Publisher sends a JSON event to a named channel.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, event any) (string, error)
}

// Notifier sends best-effort events. Publishing happens on its own
// goroutine with a fresh context, so a cancelled request never aborts it and
// a failing broker never fails the caller.
type Notifier struct {
	publisher Publisher
	logger    *log.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewNotifier returns a Notifier. A nil publisher turns every Notify into
// a no-op.
func NewNotifier(publisher Publisher, logger *log.Logger) *Notifier {
	return &Notifier{publisher: publisher, logger: logger, timeout: notifyTimeout}
}

func (n *Notifier) Notify(channel string, event any) {
	if n == nil || n.publisher == nil {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if _, err := n.publisher.PublishJSON(ctx, channel, event); err != nil && n.logger != nil {
			n.logger.Printf("[Notifier] publish to %s failed: %v", channel, err)
		}
	}()
}

// Wait blocks until in-flight notifications finish. Used on shutdown.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
