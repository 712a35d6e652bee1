package models

import "time"

// RequestStatus is the lifecycle state of a service request.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusInProgress RequestStatus = "in-progress"
	// RequestStatusResolved is terminal. Once a request reaches it, no further
	// status mutation is accepted; the remedy is filing a new request.
	RequestStatusResolved RequestStatus = "resolved"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusInProgress, RequestStatusResolved:
		return true
	}
	return false
}

// RequestPriority orders service requests for triage.
type RequestPriority string

const (
	RequestPriorityLow    RequestPriority = "low"
	RequestPriorityMedium RequestPriority = "medium"
	RequestPriorityHigh   RequestPriority = "high"
	RequestPriorityUrgent RequestPriority = "urgent"
)

// Valid reports whether the priority is a known value.
func (p RequestPriority) Valid() bool {
	switch p {
	case RequestPriorityLow, RequestPriorityMedium, RequestPriorityHigh, RequestPriorityUrgent:
		return true
	}
	return false
}

// ServiceRequest represents a persisted service request row.
// A non-nil DeletedAt marks the row as soft-deleted: it still exists in
// storage but is excluded from every list/count/detail query.
type ServiceRequest struct {
	ID            string          `db:"id" json:"id"`
	Category      string          `db:"category" json:"category"`
	Description   string          `db:"description" json:"description"`
	Priority      RequestPriority `db:"priority" json:"priority"`
	Status        RequestStatus   `db:"status" json:"status"`
	StudentID     *string         `db:"student_id" json:"student_id,omitempty"`
	StudentName   *string         `db:"student_name" json:"student_name,omitempty"`
	AttachmentURL *string         `db:"attachment_url" json:"attachment_url,omitempty"`
	AdminNotes    string          `db:"admin_notes" json:"admin_notes,omitempty"`
	ResolvedAt    *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedBy     string          `db:"created_by" json:"created_by"`
	DeletedBy     *string         `db:"deleted_by" json:"deleted_by,omitempty"`
	DeletedAt     *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// OwnerID returns the owning student id, or "" when the request has no known
// owner (legacy rows).
func (r *ServiceRequest) OwnerID() string {
	if r.StudentID == nil {
		return ""
	}
	return *r.StudentID
}

// RequestFilter captures filtering criteria for listing service requests.
// Soft-deleted rows are always excluded regardless of the filter.
type RequestFilter struct {
	Status    *RequestStatus
	Priority  *RequestPriority
	Category  string
	StudentID string
	Search    string
	Page      int
	PageSize  int
}

// RequestPatch is a partial field update. Nil fields are left untouched.
type RequestPatch struct {
	Category      *string          `json:"category,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Priority      *RequestPriority `json:"priority,omitempty"`
	Status        *RequestStatus   `json:"status,omitempty"`
	StudentName   *string          `json:"student_name,omitempty"`
	AttachmentURL *string          `json:"attachment_url,omitempty"`
	AdminNotes    *string          `json:"admin_notes,omitempty"`
}
