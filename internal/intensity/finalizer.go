package intensity

import (
	"context"
	"sync"
	"time"

	"github.com/meltforce/setforge/internal/models"
)

// Finalizer is the one-shot post-set feedback window. Finalization suspends
// briefly awaiting the athlete's answer; once the window closes (answer,
// timeout, or cancellation) the score is locked and later submissions are
// rejected. No live control may alter an in-progress set's score; the
// window only opens after set completion.
type Finalizer struct {
	mu     sync.Mutex
	fbCh   chan models.Feedback
	closed bool
}

// NewFinalizer creates an open feedback window.
func NewFinalizer() *Finalizer {
	return &Finalizer{fbCh: make(chan models.Feedback, 1)}
}

// Submit delivers the athlete's feedback. Returns false if the window has
// already closed: the record is locked and the answer is discarded.
func (f *Finalizer) Submit(fb models.Feedback) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	select {
	case f.fbCh <- fb:
		return true
	default:
		// A second answer inside the same window loses to the first.
		return false
	}
}

// Await blocks until feedback arrives, the window times out, or ctx is
// cancelled, then closes the window. Timeout and cancellation resolve to
// neutral (no feedback).
func (f *Finalizer) Await(ctx context.Context, window time.Duration) models.Feedback {
	timer := time.NewTimer(window)
	defer timer.Stop()

	var fb models.Feedback = models.FeedbackNone
	select {
	case fb = <-f.fbCh:
	case <-timer.C:
	case <-ctx.Done():
	}

	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return fb
}
