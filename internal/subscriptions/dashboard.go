package subscriptions

import (
	"context"

	"main/internal/model"
	"main/pkg/realtime"
)

// Dashboard watches dashboard_update events for one farm.
type Dashboard struct {
	sup    *realtime.Supervisor
	feed   *realtime.Feed
	farmID string
}

// WatchDashboard declares interest in dashboard updates for the farm.
func WatchDashboard(sup *realtime.Supervisor, farmID string) *Dashboard {
	return &Dashboard{
		sup:    sup,
		feed:   sup.DeclareInterest(realtime.TopicDashboardUpdate, realtime.Filter{FarmID: farmID}),
		farmID: farmID,
	}
}

// Latest returns the most recent update, if any arrived.
func (w *Dashboard) Latest() (model.DashboardUpdate, bool) {
	var update model.DashboardUpdate
	payload, ok := w.feed.Latest()
	if !ok || !decode(payload, &update) {
		return model.DashboardUpdate{}, false
	}
	return update, true
}

// Observe invokes handler for every matching update until ctx ends.
func (w *Dashboard) Observe(ctx context.Context, handler func(model.DashboardUpdate)) (cancel func()) {
	return observe(ctx, w.sup, realtime.TopicDashboardUpdate, func(u model.DashboardUpdate) bool {
		return w.farmID == "" || u.FarmID == w.farmID
	}, handler)
}

// Close revokes the declared interest.
func (w *Dashboard) Close() {
	w.feed.Unsubscribe()
}
