package realtime

import "testing"

func TestRegistryFanOutExactlyOnce(t *testing.T) {
	r := newRegistry()

	counts := make([]int, 3)
	for i := range counts {
		i := i
		r.add(TopicSensorData, func([]byte) { counts[i]++ })
	}

	r.dispatch(TopicSensorData, []byte(`{}`))
	r.dispatch(TopicFarmAlert, []byte(`{}`))

	for i, n := range counts {
		if n != 1 {
			t.Fatalf("listener %d invoked %d times, want 1", i, n)
		}
	}
}

func TestRegistryUnsubscribeSelfDuringDispatch(t *testing.T) {
	r := newRegistry()

	var first, second int
	var unsubFirst func()
	unsubFirst = r.add(TopicFarmAlert, func([]byte) {
		first++
		unsubFirst()
	})
	r.add(TopicFarmAlert, func([]byte) { second++ })

	r.dispatch(TopicFarmAlert, nil)
	r.dispatch(TopicFarmAlert, nil)

	if first != 1 {
		t.Fatalf("self-unsubscribed listener invoked %d times, want 1", first)
	}
	if second != 2 {
		t.Fatalf("remaining listener invoked %d times, want 2", second)
	}
}

func TestRegistryUnsubscribeOtherDuringDispatch(t *testing.T) {
	r := newRegistry()

	var removed, last int
	var unsubRemoved func()
	r.add(TopicFarmAlert, func([]byte) {
		if unsubRemoved != nil {
			unsubRemoved()
			unsubRemoved = nil
		}
	})
	unsubRemoved = r.add(TopicFarmAlert, func([]byte) { removed++ })
	r.add(TopicFarmAlert, func([]byte) { last++ })

	r.dispatch(TopicFarmAlert, nil)

	if removed != 0 {
		t.Fatalf("listener removed mid-dispatch invoked %d times, want 0", removed)
	}
	if last != 1 {
		t.Fatalf("still-subscribed listener invoked %d times, want 1", last)
	}
}

func TestRegistryUnsubscribeIsScopedToHandle(t *testing.T) {
	r := newRegistry()

	var kept int
	unsub := r.add(TopicNotification, func([]byte) { t.Fatal("revoked listener invoked") })
	r.add(TopicNotification, func([]byte) { kept++ })
	unsub()
	unsub() // revoking twice is harmless

	r.dispatch(TopicNotification, nil)
	if kept != 1 {
		t.Fatalf("kept listener invoked %d times, want 1", kept)
	}
}
