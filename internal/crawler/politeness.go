package crawler

import (
	"context"
	"sync"
	"time"
)

// VisitTracker remembers URLs already fetched during one discovery pass.
type VisitTracker struct {
	seen sync.Map
}

// NewVisitTracker returns an empty tracker.
func NewVisitTracker() *VisitTracker {
	return &VisitTracker{}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (t *VisitTracker) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	_, loaded := t.seen.LoadOrStore(url, struct{}{})
	return !loaded
}

// Seen reports whether url was already marked.
func (t *VisitTracker) Seen(url string) bool {
	_, ok := t.seen.Load(url)
	return ok
}

// Pauser abstracts how the fetcher waits between requests and retries.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}

// TimerPauser sleeps on a timer, returning early when ctx ends.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is done, returning ctx.Err() in the latter case.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
