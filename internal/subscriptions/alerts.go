package subscriptions

import (
	"context"

	"main/internal/model"
	"main/pkg/realtime"
)

// FarmAlerts watches farm_alert events for one farm.
type FarmAlerts struct {
	sup    *realtime.Supervisor
	feed   *realtime.Feed
	farmID string
}

// WatchFarmAlerts declares interest in alerts for the farm. The interest is
// re-asserted automatically after every reconnect.
func WatchFarmAlerts(sup *realtime.Supervisor, farmID string) *FarmAlerts {
	return &FarmAlerts{
		sup:    sup,
		feed:   sup.DeclareInterest(realtime.TopicFarmAlert, realtime.Filter{FarmID: farmID}),
		farmID: farmID,
	}
}

// Latest returns the most recent alert, if any arrived.
func (w *FarmAlerts) Latest() (model.FarmAlert, bool) {
	var alert model.FarmAlert
	payload, ok := w.feed.Latest()
	if !ok || !decode(payload, &alert) {
		return model.FarmAlert{}, false
	}
	return alert, true
}

// History returns retained alerts, oldest first.
func (w *FarmAlerts) History() []model.FarmAlert {
	raw := w.feed.History()
	out := make([]model.FarmAlert, 0, len(raw))
	for _, payload := range raw {
		var alert model.FarmAlert
		if decode(payload, &alert) {
			out = append(out, alert)
		}
	}
	return out
}

// Observe invokes handler for every matching alert until ctx ends.
func (w *FarmAlerts) Observe(ctx context.Context, handler func(model.FarmAlert)) (cancel func()) {
	return observe(ctx, w.sup, realtime.TopicFarmAlert, func(a model.FarmAlert) bool {
		return w.farmID == "" || a.FarmID == w.farmID
	}, handler)
}

// Close revokes the declared interest.
func (w *FarmAlerts) Close() {
	w.feed.Unsubscribe()
}
