package alert

import (
	"sync"
	"time"
)

// history is a bounded ring of alerts, oldest evicted first.
type history struct {
	mu    sync.RWMutex
	buf   []Alert
	start int
	size  int
}

func newHistory(capacity int) *history {
	return &history{buf: make([]Alert, capacity)}
}

func (h *history) add(a Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = a
		h.size++
		return
	}
	h.buf[h.start] = a
	h.start = (h.start + 1) % len(h.buf)
}

// since returns alerts with Timestamp after cutoff in insertion order. A
// zero cutoff returns everything.
func (h *history) since(cutoff time.Time) []Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Alert, 0, h.size)
	for i := 0; i < h.size; i++ {
		a := h.buf[(h.start+i)%len(h.buf)]
		if cutoff.IsZero() || a.Timestamp.After(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

func (h *history) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}
