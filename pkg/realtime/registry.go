package realtime

import "sync"

// EventHandler receives the raw payload of one inbound event.
type EventHandler func(payload []byte)

// StatusHandler receives supervisor status transitions.
type StatusHandler func(status Status)

type registryEntry struct {
	id uint64
	fn EventHandler
}

// registry maps topics to revocable event handlers. Dispatch snapshots the
// handler list first, so a handler may unsubscribe itself or any other
// handler while being invoked.
type registry struct {
	mu     sync.Mutex
	nextID uint64
	topics map[Topic][]registryEntry
}

func newRegistry() *registry {
	return &registry{topics: make(map[Topic][]registryEntry)}
}

func (r *registry) add(topic Topic, fn EventHandler) (unsubscribe func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.topics[topic] = append(r.topics[topic], registryEntry{id: id, fn: fn})
	r.mu.Unlock()

	return func() { r.remove(topic, id) }
}

func (r *registry) remove(topic Topic, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.topics[topic]
	for i, entry := range list {
		if entry.id == id {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(r.topics, topic)
			} else {
				r.topics[topic] = list
			}
			return
		}
	}
}

func (r *registry) dispatch(topic Topic, payload []byte) {
	r.mu.Lock()
	snapshot := append([]registryEntry(nil), r.topics[topic]...)
	r.mu.Unlock()

	for _, entry := range snapshot {
		if r.contains(topic, entry.id) {
			entry.fn(payload)
		}
	}
}

// contains re-checks membership so a handler removed mid-dispatch by an
// earlier handler in the same snapshot is skipped.
func (r *registry) contains(topic Topic, id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.topics[topic] {
		if entry.id == id {
			return true
		}
	}
	return false
}

func (r *registry) clear() {
	r.mu.Lock()
	r.topics = make(map[Topic][]registryEntry)
	r.mu.Unlock()
}

type statusEntry struct {
	id uint64
	fn StatusHandler
}

// statusFanout delivers status transitions to revocable listeners with the
// same snapshot semantics as registry.
type statusFanout struct {
	mu      sync.Mutex
	nextID  uint64
	entries []statusEntry
}

func (f *statusFanout) subscribe(fn StatusHandler) (unsubscribe func()) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.entries = append(f.entries, statusEntry{id: id, fn: fn})
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, entry := range f.entries {
			if entry.id == id {
				f.entries = append(f.entries[:i], f.entries[i+1:]...)
				return
			}
		}
	}
}

func (f *statusFanout) clear() {
	f.mu.Lock()
	f.entries = nil
	f.mu.Unlock()
}

func (f *statusFanout) emit(status Status) {
	f.mu.Lock()
	snapshot := append([]statusEntry(nil), f.entries...)
	f.mu.Unlock()
	for _, entry := range snapshot {
		entry.fn(status)
	}
}
