package realtime

import "time"

// Status is the supervisor connection state.
type Status uint8

const (
	// StatusIdle means no connection has been requested.
	StatusIdle Status = iota
	// StatusConnecting means a connection attempt is in flight.
	StatusConnecting
	// StatusConnected means the channel is established.
	StatusConnected
	// StatusDisconnected means the channel dropped and a retry is pending.
	StatusDisconnected
	// StatusFailed means retries are exhausted or the attempt cannot succeed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Topic identifies a server-pushed event category or an outbound control
// message. Wire names only exist at the channel edge.
type Topic uint8

const (
	TopicUnknown Topic = iota
	TopicFarmAlert
	TopicSensorData
	TopicDashboardUpdate
	TopicRealTimeEvent
	TopicNotification
	TopicFarmStatus

	// Outbound control messages.
	TopicJoinFarm
	TopicLeaveFarm
)

var topicWireNames = map[Topic]string{
	TopicFarmAlert:       "farm_alert",
	TopicSensorData:      "sensor_data",
	TopicDashboardUpdate: "dashboard_update",
	TopicRealTimeEvent:   "real_time_event",
	TopicNotification:    "notification",
	TopicFarmStatus:      "farm_status",
	TopicJoinFarm:        "join_farm",
	TopicLeaveFarm:       "leave_farm",
}

var topicsByWireName = func() map[string]Topic {
	byName := make(map[string]Topic, len(topicWireNames))
	for topic, name := range topicWireNames {
		byName[name] = topic
	}
	return byName
}()

// WireName returns the wire-level event name for the topic.
func (t Topic) WireName() string {
	return topicWireNames[t]
}

// TopicFromWire maps a wire-level event name onto the closed topic set.
func TopicFromWire(name string) (Topic, bool) {
	topic, ok := topicsByWireName[name]
	return topic, ok
}

// IsInbound reports whether the topic can be delivered by the server.
func (t Topic) IsInbound() bool {
	return t >= TopicFarmAlert && t <= TopicFarmStatus
}

// historyBound returns the ring buffer size a feed keeps for the topic.
func historyBound(t Topic) int {
	switch t {
	case TopicSensorData:
		return 100
	case TopicDashboardUpdate:
		return 30
	default:
		return 50
	}
}

// Filter narrows a declared interest to one farm and, optionally, one kind
// of event within the topic (e.g. a sensor type).
type Filter struct {
	FarmID string
	Kind   string
}

// Credentials identifies the session to the server when opening a channel.
type Credentials struct {
	UserID string
	Token  string
}

// AuthProvider is supplied by the host environment.
type AuthProvider interface {
	IsAuthenticated() bool
	UserID() string
	Token() string
}

// Backoff defines retry delay behavior between connection attempts.
type Backoff struct {
	// Min is the delay before the first retry.
	Min time.Duration
	// Max is the delay ceiling.
	Max time.Duration
	// Factor multiplies the delay for each further retry attempt.
	Factor float64
}
