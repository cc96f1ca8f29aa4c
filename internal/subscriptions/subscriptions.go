// Package subscriptions exposes typed watchers over the realtime
// supervisor: one helper per topic family, each owning a declared interest
// and decoding raw payloads into model types.
package subscriptions

import (
	"context"
	"encoding/json"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/pkg/realtime"
)

const observeBuffer = 64

// OnDrop, when set before watchers start, is invoked for every event a
// lagging observer forces the pump to discard.
var OnDrop func(topic realtime.Topic)

func decode[T any](payload []byte, out *T) bool {
	if err := json.Unmarshal(payload, out); err != nil {
		logs.Errorf("unmarshal event payload, err: %+v", err)
		return false
	}
	return true
}

// observe registers a raw handler on the supervisor and pumps decoded values
// to the caller until ctx or process shutdown.
func observe[T any](ctx context.Context, sup *realtime.Supervisor, topic realtime.Topic, accept func(T) bool, handler func(T)) (cancel func()) {
	ch := make(chan T, observeBuffer)
	unsubscribe := sup.Subscribe(topic, func(payload []byte) {
		var value T
		if !decode(payload, &value) {
			return
		}
		if accept != nil && !accept(value) {
			return
		}
		select {
		case ch <- value:
		default:
			if OnDrop != nil {
				OnDrop(topic)
			}
			logs.Warnf("observer lagging, drop %s event", topic.WireName())
		}
	})

	go func() {
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case value := <-ch:
				handler(value)
			}
		}
	}()

	return unsubscribe
}
