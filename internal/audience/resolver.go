// Package audience decides who receives what. It holds the single recipient
// predicate shared by the announcement read paths and the channel resolution
// used by the notification router, so list, count, read-tracking, and fan-out
// can never disagree about membership.
package audience

import (
	"fmt"

	"github.com/campushq/helpdesk-api/internal/models"
)

// ChannelKind discriminates the addressable channel types.
type ChannelKind int

const (
	// RoleBroadcast addresses every connected member of one role.
	RoleBroadcast ChannelKind = iota + 1
	// UserChannel addresses every connection of one user.
	UserChannel
	// RequestWatch addresses viewers that currently have one request's
	// detail open, regardless of role.
	RequestWatch
)

// Channel is a typed fan-out address. Exactly one of Role, UserID, RequestID
// is set depending on Kind; the transport layer never sees channel names as
// concatenated strings.
type Channel struct {
	Kind      ChannelKind
	Role      models.UserRole
	UserID    string
	RequestID string
}

// ForRole returns the broadcast channel of a role.
func ForRole(role models.UserRole) Channel {
	return Channel{Kind: RoleBroadcast, Role: role}
}

// ForUser returns the direct channel of a user.
func ForUser(userID string) Channel {
	return Channel{Kind: UserChannel, UserID: userID}
}

// ForRequest returns the watch channel of a request.
func ForRequest(requestID string) Channel {
	return Channel{Kind: RequestWatch, RequestID: requestID}
}

// IsRecipient reports whether the user is addressed by the announcement.
func IsRecipient(a *models.Announcement, userID string, role models.UserRole) bool {
	if a == nil {
		return false
	}
	switch a.Target {
	case models.AnnouncementTargetAll:
		return true
	case models.AnnouncementTargetRoles:
		for _, r := range a.TargetRoles {
			if models.UserRole(r) == role {
				return true
			}
		}
	case models.AnnouncementTargetUsers:
		for _, id := range a.TargetUserIDs {
			if id == userID {
				return true
			}
		}
	}
	return false
}

// RecipientClause compiles the IsRecipient predicate to a SQL fragment over
// the announcements table. argOffset is the number of query arguments already
// bound; the returned args must be appended in order. Keeping the SQL form
// here, next to the pure predicate, is what keeps listForRecipient,
// unreadCount, and markAllRead mutually consistent.
func RecipientClause(argOffset int, userID string, role models.UserRole) (string, []interface{}) {
	clause := fmt.Sprintf(
		"(target = 'all' OR (target = 'roles' AND $%d = ANY(target_roles)) OR (target = 'users' AND $%d = ANY(target_user_ids)))",
		argOffset+1, argOffset+2,
	)
	return clause, []interface{}{string(role), userID}
}

// ChannelsFor resolves the fixed channel set for request lifecycle events.
//
// Announcement events are intentionally absent: their audience is data-driven
// (the announcement's target mode), so the router resolves them per connected
// identity with IsRecipient instead of a structural channel set.
func ChannelsFor(ev models.NotificationEvent) []Channel {
	if ev.Request == nil {
		return nil
	}
	staff := []Channel{ForRole(models.RoleAdmin), ForRole(models.RoleManager), ForRole(models.RoleTeam)}

	switch ev.Kind {
	case models.EventRequestCreated, models.EventRequestUpdated:
		return withOwner(staff, ev.Request)
	case models.EventRequestStatusChanged:
		channels := withOwner(staff, ev.Request)
		if ev.Meta.NewStatus == models.RequestStatusResolved {
			channels = append(channels, ForRequest(ev.Request.ID))
		}
		return channels
	case models.EventRequestDeleted:
		// The owner is not separately notified about deletions.
		return staff
	}
	return nil
}

func withOwner(channels []Channel, req *models.ServiceRequest) []Channel {
	if owner := req.OwnerID(); owner != "" {
		channels = append(channels, ForUser(owner))
	}
	return channels
}
