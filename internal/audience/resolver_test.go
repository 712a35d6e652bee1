package audience

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campushq/helpdesk-api/internal/models"
)

func TestIsRecipient(t *testing.T) {
	all := &models.Announcement{Target: models.AnnouncementTargetAll}
	require.True(t, IsRecipient(all, "user-1", models.RoleStudent))
	require.True(t, IsRecipient(all, "admin-1", models.RoleAdmin))

	roles := &models.Announcement{
		Target:      models.AnnouncementTargetRoles,
		TargetRoles: []string{"student", "team"},
	}
	require.True(t, IsRecipient(roles, "user-1", models.RoleStudent))
	require.True(t, IsRecipient(roles, "team-1", models.RoleTeam))
	require.False(t, IsRecipient(roles, "manager-1", models.RoleManager))

	users := &models.Announcement{
		Target:        models.AnnouncementTargetUsers,
		TargetUserIDs: []string{"user-1", "user-2"},
	}
	require.True(t, IsRecipient(users, "user-1", models.RoleStudent))
	require.False(t, IsRecipient(users, "user-3", models.RoleStudent))

	require.False(t, IsRecipient(nil, "user-1", models.RoleStudent))
}

func TestRecipientClausePlaceholders(t *testing.T) {
	clause, args := RecipientClause(0, "user-1", models.RoleStudent)
	require.Contains(t, clause, "$1 = ANY(target_roles)")
	require.Contains(t, clause, "$2 = ANY(target_user_ids)")
	require.Equal(t, []interface{}{"student", "user-1"}, args)

	clause, args = RecipientClause(3, "user-1", models.RoleTeam)
	require.Contains(t, clause, "$4 = ANY(target_roles)")
	require.Contains(t, clause, "$5 = ANY(target_user_ids)")
	require.Equal(t, []interface{}{"team", "user-1"}, args)
}

func requestEvent(kind models.EventKind, owner string, newStatus models.RequestStatus) models.NotificationEvent {
	req := &models.ServiceRequest{ID: "req-1"}
	if owner != "" {
		req.StudentID = &owner
	}
	return models.NotificationEvent{
		Kind:    kind,
		Request: req,
		Meta:    models.EventMeta{NewStatus: newStatus},
	}
}

func channelKinds(channels []Channel) map[ChannelKind]int {
	kinds := make(map[ChannelKind]int)
	for _, ch := range channels {
		kinds[ch.Kind]++
	}
	return kinds
}

func TestChannelsForRequestLifecycle(t *testing.T) {
	created := ChannelsFor(requestEvent(models.EventRequestCreated, "student-1", ""))
	kinds := channelKinds(created)
	require.Equal(t, 3, kinds[RoleBroadcast], "created fans out to all staff roles")
	require.Equal(t, 1, kinds[UserChannel])
	require.Zero(t, kinds[RequestWatch])

	// No owner: no user channel.
	ownerless := ChannelsFor(requestEvent(models.EventRequestCreated, "", ""))
	require.Zero(t, channelKinds(ownerless)[UserChannel])

	inProgress := ChannelsFor(requestEvent(models.EventRequestStatusChanged, "student-1", models.RequestStatusInProgress))
	require.Zero(t, channelKinds(inProgress)[RequestWatch])

	resolved := ChannelsFor(requestEvent(models.EventRequestStatusChanged, "student-1", models.RequestStatusResolved))
	kinds = channelKinds(resolved)
	require.Equal(t, 1, kinds[RequestWatch], "resolution notifies open detail views")
	require.Equal(t, 1, kinds[UserChannel])

	deleted := ChannelsFor(requestEvent(models.EventRequestDeleted, "student-1", ""))
	kinds = channelKinds(deleted)
	require.Equal(t, 3, kinds[RoleBroadcast])
	require.Zero(t, kinds[UserChannel], "owners are not notified about deletions")
}

func TestChannelsForAnnouncementEventsAreDataDriven(t *testing.T) {
	ev := models.NotificationEvent{
		Kind:         models.EventAnnouncementCreated,
		Announcement: &models.Announcement{ID: "ann-1", Target: models.AnnouncementTargetAll},
	}
	require.Nil(t, ChannelsFor(ev))
}
