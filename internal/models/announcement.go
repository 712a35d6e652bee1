package models

import (
	"time"

	"github.com/lib/pq"
)

// AnnouncementType classifies an announcement.
type AnnouncementType string

const (
	AnnouncementTypeNotice        AnnouncementType = "notice"
	AnnouncementTypeEvent         AnnouncementType = "event"
	AnnouncementTypeCancellation  AnnouncementType = "cancellation"
	AnnouncementTypeRequestUpdate AnnouncementType = "request-update"
)

// Valid reports whether the type is a known value.
func (t AnnouncementType) Valid() bool {
	switch t {
	case AnnouncementTypeNotice, AnnouncementTypeEvent, AnnouncementTypeCancellation, AnnouncementTypeRequestUpdate:
		return true
	}
	return false
}

// AnnouncementPriority orders announcements for display.
type AnnouncementPriority string

const (
	AnnouncementPriorityHigh   AnnouncementPriority = "high"
	AnnouncementPriorityMedium AnnouncementPriority = "medium"
	AnnouncementPriorityLow    AnnouncementPriority = "low"
)

// Valid reports whether the priority is a known value.
func (p AnnouncementPriority) Valid() bool {
	switch p {
	case AnnouncementPriorityHigh, AnnouncementPriorityMedium, AnnouncementPriorityLow:
		return true
	}
	return false
}

// AnnouncementTarget is the audience-selection mode.
type AnnouncementTarget string

const (
	AnnouncementTargetAll   AnnouncementTarget = "all"
	AnnouncementTargetRoles AnnouncementTarget = "roles"
	AnnouncementTargetUsers AnnouncementTarget = "users"
)

// Valid reports whether the target mode is a known value.
func (t AnnouncementTarget) Valid() bool {
	switch t {
	case AnnouncementTargetAll, AnnouncementTargetRoles, AnnouncementTargetUsers:
		return true
	}
	return false
}

// Announcement represents a persisted announcement row.
//
// Invariant: target == "roles" implies TargetRoles is non-empty and
// target == "users" implies TargetUserIDs is non-empty. ReadBy is an
// append-only set of recipient ids; an id once added is never removed.
type Announcement struct {
	ID               string               `db:"id" json:"id"`
	Title            string               `db:"title" json:"title"`
	Content          string               `db:"content" json:"content"`
	Type             AnnouncementType     `db:"type" json:"type"`
	Priority         AnnouncementPriority `db:"priority" json:"priority"`
	Target           AnnouncementTarget   `db:"target" json:"target"`
	TargetRoles      pq.StringArray       `db:"target_roles" json:"target_roles,omitempty"`
	TargetUserIDs    pq.StringArray       `db:"target_user_ids" json:"target_user_ids,omitempty"`
	CreatedBy        string               `db:"created_by" json:"created_by"`
	CreatedByRole    UserRole             `db:"created_by_role" json:"created_by_role"`
	RelatedRequestID *string              `db:"related_request_id" json:"related_request_id,omitempty"`
	ReadBy           pq.StringArray       `db:"read_by" json:"read_by"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `db:"updated_at" json:"updated_at"`
}

// ReadByUser reports whether the user already appears in the read set.
func (a *Announcement) ReadByUser(userID string) bool {
	for _, id := range a.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
