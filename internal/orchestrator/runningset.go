package orchestrator

import (
	"context"
	"sync"
	"time"
)

// singleModelPollInterval and singleModelMaxPolls implement spec §4.6 step 2's
// "block until empty; if waiting exceeds 30s (60 x 500ms), force-clear".
const (
	singleModelPollInterval = 500 * time.Millisecond
	singleModelMaxPolls     = 60
)

// runningSet tracks which models currently have a turn in flight. In
// single-model mode, acquire blocks new entrants until the set is empty,
// recovering from a stuck prior turn by force-clearing after the timeout
// rather than deadlocking the discussion forever.
type runningSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func newRunningSet() *runningSet {
	return &runningSet{set: make(map[string]struct{})}
}

// acquire inserts model into the set, waiting first if singleModelMode is on
// and the set is non-empty. Returns false only if ctx was cancelled while
// waiting.
func (r *runningSet) acquire(ctx context.Context, model string, singleModelMode bool) bool {
	if !singleModelMode {
		r.mu.Lock()
		r.set[model] = struct{}{}
		r.mu.Unlock()
		return true
	}

	for poll := 0; ; poll++ {
		r.mu.Lock()
		if len(r.set) == 0 {
			r.set[model] = struct{}{}
			r.mu.Unlock()
			return true
		}
		if poll >= singleModelMaxPolls {
			r.set = map[string]struct{}{model: {}}
			r.mu.Unlock()
			return true
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return false
		case <-time.After(singleModelPollInterval):
		}
	}
}

// release removes model from the set. Safe to call even if model isn't
// present (e.g. after a force-clear already dropped it).
func (r *runningSet) release(model string) {
	r.mu.Lock()
	delete(r.set, model)
	r.mu.Unlock()
}

// removeAll clears every entry belonging to models, used by Delete to force
// a discussion's in-flight turn out of the set.
func (r *runningSet) removeAll(models []string) {
	r.mu.Lock()
	for _, m := range models {
		delete(r.set, m)
	}
	r.mu.Unlock()
}
