package subscriptions

import (
	"context"

	"main/internal/model"
	"main/pkg/realtime"
)

// SensorData watches sensor_data events for one farm, optionally narrowed
// to one sensor kind (e.g. "temperature").
type SensorData struct {
	sup    *realtime.Supervisor
	feed   *realtime.Feed
	farmID string
	kind   string
}

// WatchSensorData declares interest in sensor readings for the farm. An
// empty kind watches every sensor.
func WatchSensorData(sup *realtime.Supervisor, farmID, kind string) *SensorData {
	return &SensorData{
		sup:    sup,
		feed:   sup.DeclareInterest(realtime.TopicSensorData, realtime.Filter{FarmID: farmID, Kind: kind}),
		farmID: farmID,
		kind:   kind,
	}
}

// Latest returns the most recent reading, if any arrived.
func (w *SensorData) Latest() (model.SensorReading, bool) {
	var reading model.SensorReading
	payload, ok := w.feed.Latest()
	if !ok || !decode(payload, &reading) {
		return model.SensorReading{}, false
	}
	return reading, true
}

// History returns retained readings, oldest first.
func (w *SensorData) History() []model.SensorReading {
	raw := w.feed.History()
	out := make([]model.SensorReading, 0, len(raw))
	for _, payload := range raw {
		var reading model.SensorReading
		if decode(payload, &reading) {
			out = append(out, reading)
		}
	}
	return out
}

// Observe invokes handler for every matching reading until ctx ends.
func (w *SensorData) Observe(ctx context.Context, handler func(model.SensorReading)) (cancel func()) {
	return observe(ctx, w.sup, realtime.TopicSensorData, func(r model.SensorReading) bool {
		if w.farmID != "" && r.FarmID != w.farmID {
			return false
		}
		return w.kind == "" || r.Kind == w.kind
	}, handler)
}

// Close revokes the declared interest.
func (w *SensorData) Close() {
	w.feed.Unsubscribe()
}
