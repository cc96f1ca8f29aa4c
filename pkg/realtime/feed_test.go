package realtime

import (
	"fmt"
	"testing"
)

func TestFeedHistoryRingBound(t *testing.T) {
	feed := newFeed(TopicSensorData, Filter{}, 5)

	for i := 0; i < 8; i++ {
		feed.accept([]byte(fmt.Sprintf(`{"seq":%d}`, i)))
	}

	history := feed.History()
	if len(history) != 5 {
		t.Fatalf("history holds %d entries, want 5", len(history))
	}
	for i, payload := range history {
		want := fmt.Sprintf(`{"seq":%d}`, i+3)
		if string(payload) != want {
			t.Fatalf("history[%d] = %s, want %s", i, payload, want)
		}
	}

	latest, ok := feed.Latest()
	if !ok || string(latest) != `{"seq":7}` {
		t.Fatalf("latest = %s (%v), want seq 7", latest, ok)
	}
}

func TestHistoryBoundPerTopic(t *testing.T) {
	cases := []struct {
		topic Topic
		want  int
	}{
		{TopicSensorData, 100},
		{TopicDashboardUpdate, 30},
		{TopicFarmAlert, 50},
		{TopicRealTimeEvent, 50},
		{TopicNotification, 50},
	}
	for _, c := range cases {
		if got := historyBound(c.topic); got != c.want {
			t.Fatalf("%s history bound = %d, want %d", c.topic.WireName(), got, c.want)
		}
	}
}

func TestFeedKindFilter(t *testing.T) {
	feed := newFeed(TopicSensorData, Filter{FarmID: "f1", Kind: "temperature"}, 10)

	feed.accept([]byte(`{"farmId":"f1","type":"humidity","value":"80"}`))
	if feed.Len() != 0 {
		t.Fatal("mismatched sensor type must not be retained")
	}

	feed.accept([]byte(`{"farmId":"f1","type":"temperature","value":"21.5"}`))
	if feed.Len() != 1 {
		t.Fatal("matching reading should be retained")
	}
}
