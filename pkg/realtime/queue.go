package realtime

import (
	"sync"
	"time"
)

// QueuedMessage is one outbound message buffered while disconnected.
type QueuedMessage struct {
	Topic      Topic
	Payload    []byte
	EnqueuedAt time.Time
}

// outboundQueue is a bounded FIFO ring for messages issued while the channel
// is down. The oldest entry is evicted when the cap is reached.
type outboundQueue struct {
	mu     sync.Mutex
	buf    []QueuedMessage
	head   int
	size   int
	maxAge time.Duration

	evicted uint64
}

func newOutboundQueue(capacity int, maxAge time.Duration) *outboundQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &outboundQueue{
		buf:    make([]QueuedMessage, capacity),
		maxAge: maxAge,
	}
}

func (q *outboundQueue) push(topic Topic, payload []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == len(q.buf) {
		q.buf[q.head] = QueuedMessage{}
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.evicted++
	}
	tail := (q.head + q.size) % len(q.buf)
	q.buf[tail] = QueuedMessage{Topic: topic, Payload: payload, EnqueuedAt: time.Now()}
	q.size++
}

// flush returns all live entries in FIFO order and empties the queue.
// Entries older than maxAge are dropped, not returned.
func (q *outboundQueue) flush() []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil
	}
	cutoff := time.Time{}
	if q.maxAge > 0 {
		cutoff = time.Now().Add(-q.maxAge)
	}
	out := make([]QueuedMessage, 0, q.size)
	for i := 0; i < q.size; i++ {
		entry := q.buf[(q.head+i)%len(q.buf)]
		if !cutoff.IsZero() && entry.EnqueuedAt.Before(cutoff) {
			q.evicted++
			continue
		}
		out = append(out, entry)
	}
	q.reset()
	return out
}

func (q *outboundQueue) clear() {
	q.mu.Lock()
	q.reset()
	q.mu.Unlock()
}

func (q *outboundQueue) reset() {
	for i := range q.buf {
		q.buf[i] = QueuedMessage{}
	}
	q.head = 0
	q.size = 0
}

func (q *outboundQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *outboundQueue) evictions() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}
