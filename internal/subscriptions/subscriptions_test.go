package subscriptions

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/pkg/realtime"
)

type stubChannel struct {
	mu      sync.Mutex
	handler realtime.ChannelHandler
	sent    []realtime.Topic
}

func (c *stubChannel) Open(string, realtime.Credentials) {}
func (c *stubChannel) Close()                            {}

func (c *stubChannel) Send(topic realtime.Topic, _ []byte) {
	c.mu.Lock()
	c.sent = append(c.sent, topic)
	c.mu.Unlock()
}

func connectedSupervisor(t *testing.T) (*realtime.Supervisor, *stubChannel) {
	t.Helper()
	st := &stubChannel{}
	sup := realtime.New(realtime.Option{
		Channel: func(h realtime.ChannelHandler) realtime.Channel {
			st.handler = h
			return st
		},
	})
	t.Cleanup(sup.Close)
	sup.Connect("ws://farm.local/ws")
	st.handler.HandleConnected()
	require.Equal(t, realtime.StatusConnected, sup.Status())
	return sup, st
}

func TestFarmAlertsLatestAndHistory(t *testing.T) {
	sup, st := connectedSupervisor(t)

	watch := WatchFarmAlerts(sup, "farmA")
	defer watch.Close()

	st.handler.HandleEvent(realtime.TopicFarmAlert,
		[]byte(`{"farmId":"farmA","severity":"warning","message":"Low oxygen in pond 2"}`))
	st.handler.HandleEvent(realtime.TopicFarmAlert,
		[]byte(`{"farmId":"farmB","severity":"critical","message":"other farm"}`))
	st.handler.HandleEvent(realtime.TopicFarmAlert,
		[]byte(`{"farmId":"farmA","severity":"critical","message":"Pump failure"}`))

	latest, ok := watch.Latest()
	require.True(t, ok)
	assert.Equal(t, "Pump failure", latest.Message)
	assert.True(t, latest.Critical())

	history := watch.History()
	require.Len(t, history, 2, "other farm's alert is filtered out")
	assert.Equal(t, "Low oxygen in pond 2", history[0].Message)
}

func TestSensorDataDecodesDecimalValues(t *testing.T) {
	sup, st := connectedSupervisor(t)

	watch := WatchSensorData(sup, "farmA", "temperature")
	defer watch.Close()

	st.handler.HandleEvent(realtime.TopicSensorData,
		[]byte(`{"farmId":"farmA","sensorId":"t-01","type":"temperature","value":"21.5","unit":"C"}`))

	reading, ok := watch.Latest()
	require.True(t, ok)
	assert.Equal(t, "t-01", reading.SensorID)
	assert.Equal(t, "21.5", reading.Value.String())
	assert.Equal(t, "C", reading.Unit)
}

func TestObserveDeliversAndFilters(t *testing.T) {
	sup, st := connectedSupervisor(t)

	watch := WatchFarmAlerts(sup, "farmA")
	defer watch.Close()

	var mu sync.Mutex
	var got []model.FarmAlert
	cancel := watch.Observe(t.Context(), func(a model.FarmAlert) {
		mu.Lock()
		got = append(got, a)
		mu.Unlock()
	})
	defer cancel()

	st.handler.HandleEvent(realtime.TopicFarmAlert, []byte(`{"farmId":"farmB","severity":"low"}`))
	st.handler.HandleEvent(realtime.TopicFarmAlert, []byte(`{"farmId":"farmA","severity":"high"}`))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "farmA", got[0].FarmID)
}

func TestObserveLagCountsDrops(t *testing.T) {
	sup, st := connectedSupervisor(t)

	var drops atomic.Int64
	OnDrop = func(realtime.Topic) { drops.Add(1) }
	t.Cleanup(func() { OnDrop = nil })

	watch := WatchFarmAlerts(sup, "farmA")
	defer watch.Close()

	block := make(chan struct{})
	cancel := watch.Observe(t.Context(), func(model.FarmAlert) {
		<-block
	})
	defer cancel()
	defer close(block)

	// The pump holds at most one alert in the blocked handler plus the
	// channel buffer; everything past that must hit the drop hook.
	for i := 0; i < observeBuffer+10; i++ {
		st.handler.HandleEvent(realtime.TopicFarmAlert,
			[]byte(`{"farmId":"farmA","severity":"low"}`))
	}

	require.Eventually(t, func() bool { return drops.Load() >= 1 },
		time.Second, time.Millisecond)
}

func TestNotificationsUnread(t *testing.T) {
	sup, st := connectedSupervisor(t)

	watch := WatchNotifications(sup, "u1")
	defer watch.Close()

	st.handler.HandleEvent(realtime.TopicNotification,
		[]byte(`{"id":"n1","userId":"u1","title":"Batch ready","read":true}`))
	st.handler.HandleEvent(realtime.TopicNotification,
		[]byte(`{"id":"n2","userId":"u1","title":"Invoice overdue","read":false}`))

	unread := watch.Unread()
	require.Len(t, unread, 1)
	assert.Equal(t, "n2", unread[0].ID)
}
