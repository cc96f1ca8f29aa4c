package subscriptions

import (
	"context"

	"main/internal/model"
	"main/pkg/realtime"
)

// Notifications watches user-addressed notification events. Notifications
// are not farm-scoped; filtering is by the authenticated user.
type Notifications struct {
	sup    *realtime.Supervisor
	feed   *realtime.Feed
	userID string
}

// WatchNotifications declares interest in notifications for the user. An
// empty user id watches everything the server pushes on the session.
func WatchNotifications(sup *realtime.Supervisor, userID string) *Notifications {
	return &Notifications{
		sup:    sup,
		feed:   sup.DeclareInterest(realtime.TopicNotification, realtime.Filter{}),
		userID: userID,
	}
}

// Latest returns the most recent notification, if any arrived.
func (w *Notifications) Latest() (model.Notification, bool) {
	var note model.Notification
	payload, ok := w.feed.Latest()
	if !ok || !decode(payload, &note) {
		return model.Notification{}, false
	}
	return note, true
}

// Unread returns retained notifications not yet marked read.
func (w *Notifications) Unread() []model.Notification {
	raw := w.feed.History()
	out := make([]model.Notification, 0, len(raw))
	for _, payload := range raw {
		var note model.Notification
		if decode(payload, &note) && !note.Read {
			out = append(out, note)
		}
	}
	return out
}

// Observe invokes handler for every matching notification until ctx ends.
func (w *Notifications) Observe(ctx context.Context, handler func(model.Notification)) (cancel func()) {
	return observe(ctx, w.sup, realtime.TopicNotification, func(n model.Notification) bool {
		return w.userID == "" || n.UserID == w.userID
	}, handler)
}

// Close revokes the declared interest.
func (w *Notifications) Close() {
	w.feed.Unsubscribe()
}
