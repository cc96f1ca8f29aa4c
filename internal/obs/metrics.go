// Package obs collects lightweight counters for the realtime session.
package obs

import (
	"sync/atomic"

	"main/pkg/realtime"
)

const maxTopic = int(realtime.TopicFarmStatus)

// Metrics counts session activity with lock-free atomics.
type Metrics struct {
	eventCounts   [maxTopic + 1]uint64
	reconnects    uint64
	failures      uint64
	observerDrops uint64
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	EventCounts   map[realtime.Topic]uint64
	Reconnects    uint64
	Failures      uint64
	ObserverDrops uint64
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncEvent counts one delivered event for the topic.
func (m *Metrics) IncEvent(topic realtime.Topic) {
	if m == nil {
		return
	}
	idx := int(topic)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// IncReconnect counts one connected transition after the first.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconnects, 1)
}

// IncFailure counts one terminal failed transition.
func (m *Metrics) IncFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.failures, 1)
}

// IncObserverDrop counts one event dropped by a lagging observer.
func (m *Metrics) IncObserverDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.observerDrops, 1)
}

// Watch wires the metrics to a supervisor's events and status transitions.
func (m *Metrics) Watch(sup *realtime.Supervisor) (cancel func()) {
	var cancels []func()
	for topic := realtime.TopicFarmAlert; topic <= realtime.TopicFarmStatus; topic++ {
		topic := topic
		cancels = append(cancels, sup.Subscribe(topic, func([]byte) {
			m.IncEvent(topic)
		}))
	}

	var sawConnected atomic.Bool
	cancels = append(cancels, sup.OnStatusChange(func(status realtime.Status) {
		switch status {
		case realtime.StatusConnected:
			if !sawConnected.CompareAndSwap(false, true) {
				m.IncReconnect()
			}
		case realtime.StatusFailed:
			m.IncFailure()
		}
	}))

	return func() {
		for _, fn := range cancels {
			fn()
		}
	}
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		EventCounts:   make(map[realtime.Topic]uint64, maxTopic+1),
		Reconnects:    atomic.LoadUint64(&m.reconnects),
		Failures:      atomic.LoadUint64(&m.failures),
		ObserverDrops: atomic.LoadUint64(&m.observerDrops),
	}
	for i := range m.eventCounts {
		if count := atomic.LoadUint64(&m.eventCounts[i]); count > 0 {
			snap.EventCounts[realtime.Topic(i)] = count
		}
	}
	return snap
}
