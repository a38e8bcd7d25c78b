package ai

import (
	"fmt"
	"sync"
	"time"
)

// ThinkingTracker reports how long the model has been working on the
// oldest question still in flight
type ThinkingTracker struct {
	mu       sync.Mutex
	inflight map[uint64]time.Time
	next     uint64
	now      func() time.Time
}

// NewThinkingTracker creates an idle tracker
func NewThinkingTracker() *ThinkingTracker {
	return &ThinkingTracker{
		inflight: make(map[uint64]time.Time),
		now:      time.Now,
	}
}

// Begin marks a question as in flight. Call the returned func when the
// answer (or failure) arrives.
func (t *ThinkingTracker) Begin() func() {
	t.mu.Lock()
	id := t.next
	t.next++
	t.inflight[id] = t.now()
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.inflight, id)
			t.mu.Unlock()
		})
	}
}

// Status returns a display string and the elapsed seconds
func (t *ThinkingTracker) Status() (string, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.inflight) == 0 {
		return "就绪", 0
	}

	var oldest time.Time
	for _, started := range t.inflight {
		if oldest.IsZero() || started.Before(oldest) {
			oldest = started
		}
	}
	elapsed := t.now().Sub(oldest).Seconds()
	return fmt.Sprintf("AI思考中...%.1f秒", elapsed), elapsed
}
