package realtime

import (
	"encoding/json"
	"sync"
)

// eventProbe extracts the client-side filtering discriminators from an
// otherwise opaque payload.
type eventProbe struct {
	FarmID string `json:"farmId"`
	Kind   string `json:"type"`
}

// Feed accumulates the matching events of one declared interest: the most
// recent payload plus a bounded FIFO history.
type Feed struct {
	topic Topic

	mu      sync.Mutex
	filter  Filter
	latest  []byte
	history [][]byte
	head    int
	size    int

	unsubscribe func()
	redeclare   func(Filter)
}

func newFeed(topic Topic, filter Filter, bound int) *Feed {
	if bound <= 0 {
		bound = 1
	}
	return &Feed{
		topic:   topic,
		filter:  filter,
		history: make([][]byte, bound),
	}
}

// Topic returns the declared topic.
func (f *Feed) Topic() Topic {
	return f.topic
}

// Latest returns the most recent matching payload, or false when none has
// arrived yet.
func (f *Feed) Latest() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return nil, false
	}
	return f.latest, true
}

// History returns the retained payloads, oldest first.
func (f *Feed) History() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, 0, f.size)
	for i := 0; i < f.size; i++ {
		out = append(out, f.history[(f.head+i)%len(f.history)])
	}
	return out
}

// Len returns the number of retained payloads.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Unsubscribe removes the feed's listener and its subscription intent.
// Safe to call more than once, including from inside a dispatch.
func (f *Feed) Unsubscribe() {
	if f.unsubscribe != nil {
		f.unsubscribe()
	}
}

// Redeclare replaces the feed's filter in place. The subscription intent is
// replaced rather than added, and farm membership is adjusted on the server
// when connected. Already-retained history is kept as is.
func (f *Feed) Redeclare(filter Filter) {
	if f.redeclare != nil {
		f.redeclare(filter)
	}
}

func (f *Feed) swapFilter(next Filter) (prev Filter) {
	f.mu.Lock()
	prev = f.filter
	f.filter = next
	f.mu.Unlock()
	return prev
}

// accept is the feed's registered event handler.
func (f *Feed) accept(payload []byte) {
	if !f.matches(payload) {
		return
	}

	// Events share the channel read buffer lifetime upstream; keep a copy.
	kept := append([]byte(nil), payload...)

	f.mu.Lock()
	f.latest = kept
	if f.size == len(f.history) {
		f.history[f.head] = nil
		f.head = (f.head + 1) % len(f.history)
		f.size--
	}
	f.history[(f.head+f.size)%len(f.history)] = kept
	f.size++
	f.mu.Unlock()
}

func (f *Feed) matches(payload []byte) bool {
	f.mu.Lock()
	filter := f.filter
	f.mu.Unlock()

	if filter.FarmID == "" && filter.Kind == "" {
		return true
	}
	var probe eventProbe
	if err := json.Unmarshal(payload, &probe); err != nil {
		return false
	}
	if filter.FarmID != "" && probe.FarmID != "" && probe.FarmID != filter.FarmID {
		return false
	}
	if filter.Kind != "" && probe.Kind != "" && probe.Kind != filter.Kind {
		return false
	}
	return true
}
