package usecase

import (
	"sync"
	"time"

	"StockForecaster/internal/domain/models"
)

const defaultSubscriberBuffer = 16

// ProgressHub fans stage events out to the subscribers of a run id.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type ProgressHub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan models.ProgressEvent]struct{}
	buffer int
	now    func() time.Time
}

func NewProgressHub(buffer int) *ProgressHub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &ProgressHub{
		subs:   make(map[string]map[chan models.ProgressEvent]struct{}),
		buffer: buffer,
		now:    time.Now,
	}
}

// Subscribe registers a listener for runID. The returned cancel func must be
// called once the listener is done; it closes the channel.
func (h *ProgressHub) Subscribe(runID string) (<-chan models.ProgressEvent, func()) {
	ch := make(chan models.ProgressEvent, h.buffer)

	h.mu.Lock()
	set, ok := h.subs[runID]
	if !ok {
		set = make(map[chan models.ProgressEvent]struct{})
		h.subs[runID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[runID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, runID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers an event to every subscriber of its run id.
func (h *ProgressHub) Publish(ev models.ProgressEvent) {
	if ev.RunID == "" {
		return
	}
	if ev.At.IsZero() {
		ev.At = h.now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Emit is shorthand for publishing a stage transition.
func (h *ProgressHub) Emit(runID, stage, status, message string) {
	h.Publish(models.ProgressEvent{RunID: runID, Stage: stage, Status: status, Message: message})
}

// Subscribers returns how many listeners runID has.
func (h *ProgressHub) Subscribers(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[runID])
}
