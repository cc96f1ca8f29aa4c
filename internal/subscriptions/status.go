package subscriptions

import (
	"context"

	"main/internal/model"
	"main/pkg/realtime"
)

// FarmStatusWatch watches farm_status events for one farm.
type FarmStatusWatch struct {
	sup    *realtime.Supervisor
	feed   *realtime.Feed
	farmID string
}

// WatchFarmStatus declares interest in status transitions for the farm.
func WatchFarmStatus(sup *realtime.Supervisor, farmID string) *FarmStatusWatch {
	return &FarmStatusWatch{
		sup:    sup,
		feed:   sup.DeclareInterest(realtime.TopicFarmStatus, realtime.Filter{FarmID: farmID}),
		farmID: farmID,
	}
}

// Latest returns the most recent status, if any arrived.
func (w *FarmStatusWatch) Latest() (model.FarmStatus, bool) {
	var status model.FarmStatus
	payload, ok := w.feed.Latest()
	if !ok || !decode(payload, &status) {
		return model.FarmStatus{}, false
	}
	return status, true
}

// Observe invokes handler for every matching status until ctx ends.
func (w *FarmStatusWatch) Observe(ctx context.Context, handler func(model.FarmStatus)) (cancel func()) {
	return observe(ctx, w.sup, realtime.TopicFarmStatus, func(s model.FarmStatus) bool {
		return w.farmID == "" || s.FarmID == w.farmID
	}, handler)
}

// Close revokes the declared interest.
func (w *FarmStatusWatch) Close() {
	w.feed.Unsubscribe()
}
