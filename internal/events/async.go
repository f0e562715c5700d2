package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Async hands events to the wrapped publisher on background goroutines so a
// slow broker never delays a request. Failures are logged and dropped.
type Async struct {
	next    Publisher
	log     *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Publisher, log *slog.Logger, timeout time.Duration) *Async {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, log: log, timeout: timeout}
}

func (a *Async) PublishEvent(ctx context.Context, topic, key string, event any) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.PublishEvent(pubCtx, topic, key, event); err != nil {
			a.log.Warn("event_publish_failed", "topic", topic, "key", key, "error", err)
		}
	}()
	return nil
}

// Close waits for in-flight events, then closes the wrapped publisher.
func (a *Async) Close() error {
	a.wg.Wait()
	return a.next.Close()
}
