package obs

import (
	"testing"
	"time"

	"main/pkg/realtime"
)

type nopChannel struct {
	handler realtime.ChannelHandler
}

func (c *nopChannel) Open(string, realtime.Credentials) {}
func (c *nopChannel) Close()                            {}
func (c *nopChannel) Send(realtime.Topic, []byte)       {}

func TestMetricsWatch(t *testing.T) {
	ch := &nopChannel{}
	sup := realtime.New(realtime.Option{
		Backoff: realtime.Backoff{Min: time.Millisecond, Max: 2 * time.Millisecond, Factor: 2},
		Channel: func(h realtime.ChannelHandler) realtime.Channel {
			ch.handler = h
			return ch
		},
	})
	defer sup.Close()

	m := NewMetrics()
	cancel := m.Watch(sup)
	defer cancel()

	sup.Connect("ws://farm.local/ws")
	ch.handler.HandleConnected()
	ch.handler.HandleEvent(realtime.TopicFarmAlert, []byte(`{"farmId":"f1"}`))
	ch.handler.HandleEvent(realtime.TopicFarmAlert, []byte(`{"farmId":"f1"}`))
	ch.handler.HandleEvent(realtime.TopicSensorData, []byte(`{"farmId":"f1"}`))

	snap := m.Snapshot()
	if snap.EventCounts[realtime.TopicFarmAlert] != 2 {
		t.Fatalf("farm_alert count = %d, want 2", snap.EventCounts[realtime.TopicFarmAlert])
	}
	if snap.EventCounts[realtime.TopicSensorData] != 1 {
		t.Fatalf("sensor_data count = %d, want 1", snap.EventCounts[realtime.TopicSensorData])
	}
	if snap.Reconnects != 0 {
		t.Fatalf("reconnects = %d, want 0 after first connect", snap.Reconnects)
	}

	ch.handler.HandleDisconnected(nil)
	deadline := time.Now().Add(time.Second)
	for sup.Status() != realtime.StatusConnecting {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for retry")
		}
		time.Sleep(time.Millisecond)
	}
	ch.handler.HandleConnected()

	if got := m.Snapshot().Reconnects; got != 1 {
		t.Fatalf("reconnects = %d, want 1", got)
	}
}
