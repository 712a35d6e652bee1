package models

// EventKind names a domain mutation emitted by the stores.
type EventKind string

const (
	EventRequestCreated       EventKind = "request.created"
	EventRequestUpdated       EventKind = "request.updated"
	EventRequestStatusChanged EventKind = "request.status_changed"
	EventRequestDeleted       EventKind = "request.deleted"
	EventAnnouncementCreated  EventKind = "announcement.created"
	EventAnnouncementDeleted  EventKind = "announcement.deleted"
)

// EventMeta carries transition-specific fields alongside the entity snapshot.
type EventMeta struct {
	OldStatus RequestStatus `json:"old_status,omitempty"`
	NewStatus RequestStatus `json:"new_status,omitempty"`
	UpdatedBy string        `json:"updated_by,omitempty"`
	DeletedBy string        `json:"deleted_by,omitempty"`
	ActorRole UserRole      `json:"actor_role,omitempty"`
}

// NotificationEvent is an ephemeral fan-out payload. It is never persisted;
// REST reads remain the source of truth when delivery fails.
type NotificationEvent struct {
	Kind         EventKind       `json:"kind"`
	Request      *ServiceRequest `json:"request,omitempty"`
	Announcement *Announcement   `json:"announcement,omitempty"`
	Meta         EventMeta       `json:"meta"`
}
