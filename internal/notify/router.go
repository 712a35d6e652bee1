// Package notify routes domain events to connected audiences. The router is
// constructed once at process start and handed to every component that emits
// events; nothing in the codebase reaches for a process-global instance.
package notify

import (
	"go.uber.org/zap"

	"github.com/campushq/helpdesk-api/internal/audience"
	"github.com/campushq/helpdesk-api/internal/models"
)

// Scope tags who a frame is addressed to, so clients can apply
// audience-specific UI logic without filtering staff traffic themselves.
const (
	ScopeStaff     = "staff"
	ScopeOwner     = "owner"
	ScopeWatcher   = "watcher"
	ScopeRecipient = "recipient"
)

// Message is the wire envelope pushed over the realtime transport.
type Message struct {
	Event models.EventKind `json:"event"`
	Scope string           `json:"scope"`
	Data  interface{}      `json:"data"`
	Meta  models.EventMeta `json:"meta"`
}

// Transport is the connection substrate the router publishes through.
type Transport interface {
	Publish(ch audience.Channel, payload interface{}) error
	PublishMatching(match func(models.Identity) bool, payload interface{}) error
	PublishAll(payload interface{}) error
}

// Router fans out store-emitted domain events. Publishing is strictly
// best-effort: it runs only after the triggering mutation committed, and no
// transport fault ever reaches the mutating caller.
type Router struct {
	transport Transport
	logger    *zap.Logger
}

// NewRouter constructs a router over the given transport.
func NewRouter(transport Transport, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{transport: transport, logger: logger}
}

// Publish resolves the event's audience and pushes it to each channel.
// It never returns an error and never panics into the caller; every
// publish-time fault is captured as a structured log event.
func (r *Router) Publish(ev models.NotificationEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("notification publish panicked",
				zap.String("event", string(ev.Kind)),
				zap.Any("panic", rec))
		}
	}()

	switch ev.Kind {
	case models.EventAnnouncementCreated:
		r.publishAnnouncementCreated(ev)
	case models.EventAnnouncementDeleted:
		r.publishAnnouncementDeleted(ev)
	default:
		r.publishRequestEvent(ev)
	}
}

func (r *Router) publishRequestEvent(ev models.NotificationEvent) {
	for _, ch := range audience.ChannelsFor(ev) {
		msg := Message{Event: ev.Kind, Data: ev.Request, Meta: ev.Meta}
		switch ch.Kind {
		case audience.RoleBroadcast:
			msg.Scope = ScopeStaff
		case audience.UserChannel:
			msg.Scope = ScopeOwner
		case audience.RequestWatch:
			msg.Scope = ScopeWatcher
		}
		if err := r.transport.Publish(ch, msg); err != nil {
			r.logPublishError(ev, err)
		}
	}
}

// publishAnnouncementCreated resolves recipients per connected identity:
// announcement audiences are data-driven (target mode), so no fixed channel
// set exists.
func (r *Router) publishAnnouncementCreated(ev models.NotificationEvent) {
	if ev.Announcement == nil {
		return
	}
	msg := Message{Event: ev.Kind, Scope: ScopeRecipient, Data: ev.Announcement, Meta: ev.Meta}
	err := r.transport.PublishMatching(func(id models.Identity) bool {
		return audience.IsRecipient(ev.Announcement, id.UserID, id.Role)
	}, msg)
	if err != nil {
		r.logPublishError(ev, err)
	}
}

// publishAnnouncementDeleted retracts the announcement from every connected
// identity; consumers drop retractions for announcements they never held.
func (r *Router) publishAnnouncementDeleted(ev models.NotificationEvent) {
	msg := Message{Event: ev.Kind, Scope: ScopeRecipient, Data: ev.Announcement, Meta: ev.Meta}
	if err := r.transport.PublishAll(msg); err != nil {
		r.logPublishError(ev, err)
	}
}

func (r *Router) logPublishError(ev models.NotificationEvent, err error) {
	r.logger.Warn("notification publish failed",
		zap.String("event", string(ev.Kind)),
		zap.Error(err))
}
