package notify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campushq/helpdesk-api/internal/audience"
	"github.com/campushq/helpdesk-api/internal/models"
)

type fakeTransport struct {
	published []publishedFrame
	matching  []Message
	broadcast []Message
	err       error
	panicOn   bool

	// identities simulates the connected population for PublishMatching;
	// matchedIdentities records which of them the predicate selected.
	identities        []models.Identity
	matchedIdentities []models.Identity
}

type publishedFrame struct {
	channel audience.Channel
	message Message
}

func (f *fakeTransport) Publish(ch audience.Channel, payload interface{}) error {
	if f.panicOn {
		panic("transport exploded")
	}
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedFrame{channel: ch, message: payload.(Message)})
	return nil
}

func (f *fakeTransport) PublishMatching(match func(models.Identity) bool, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	msg := payload.(Message)
	f.matching = append(f.matching, msg)
	// Record which identities would match, exercising the predicate.
	f.matchedIdentities = nil
	for _, id := range f.identities {
		if match(id) {
			f.matchedIdentities = append(f.matchedIdentities, id)
		}
	}
	return nil
}

func (f *fakeTransport) PublishAll(payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.broadcast = append(f.broadcast, payload.(Message))
	return nil
}

func TestRouterPublishesRequestEventsWithScopes(t *testing.T) {
	transport := &fakeTransport{}
	router := NewRouter(transport, nil)

	owner := "student-1"
	router.Publish(models.NotificationEvent{
		Kind:    models.EventRequestStatusChanged,
		Request: &models.ServiceRequest{ID: "req-1", StudentID: &owner},
		Meta: models.EventMeta{
			OldStatus: models.RequestStatusPending,
			NewStatus: models.RequestStatusResolved,
		},
	})

	scopesByKind := make(map[audience.ChannelKind]string)
	for _, frame := range transport.published {
		scopesByKind[frame.channel.Kind] = frame.message.Scope
		require.Equal(t, models.EventRequestStatusChanged, frame.message.Event)
	}
	require.Equal(t, ScopeStaff, scopesByKind[audience.RoleBroadcast])
	require.Equal(t, ScopeOwner, scopesByKind[audience.UserChannel])
	require.Equal(t, ScopeWatcher, scopesByKind[audience.RequestWatch])
}

func TestRouterAnnouncementCreatedResolvesPerIdentity(t *testing.T) {
	transport := &fakeTransport{identities: []models.Identity{
		{UserID: "student-1", Role: models.RoleStudent},
		{UserID: "team-1", Role: models.RoleTeam},
		{UserID: "student-2", Role: models.RoleStudent},
	}}
	router := NewRouter(transport, nil)

	router.Publish(models.NotificationEvent{
		Kind: models.EventAnnouncementCreated,
		Announcement: &models.Announcement{
			ID:            "ann-1",
			Target:        models.AnnouncementTargetUsers,
			TargetUserIDs: []string{"student-2"},
		},
	})

	require.Len(t, transport.matching, 1)
	require.Equal(t, ScopeRecipient, transport.matching[0].Scope)
	require.Len(t, transport.matchedIdentities, 1)
	require.Equal(t, "student-2", transport.matchedIdentities[0].UserID)
}

func TestRouterAnnouncementDeletedBroadcasts(t *testing.T) {
	transport := &fakeTransport{}
	router := NewRouter(transport, nil)

	router.Publish(models.NotificationEvent{
		Kind:         models.EventAnnouncementDeleted,
		Announcement: &models.Announcement{ID: "ann-1"},
	})

	require.Len(t, transport.broadcast, 1)
	require.Equal(t, models.EventAnnouncementDeleted, transport.broadcast[0].Event)
	require.Equal(t, ScopeRecipient, transport.broadcast[0].Scope)
}

func TestRouterSwallowsTransportFailures(t *testing.T) {
	transport := &fakeTransport{err: fmt.Errorf("connection backlog full")}
	router := NewRouter(transport, nil)

	require.NotPanics(t, func() {
		router.Publish(models.NotificationEvent{
			Kind:    models.EventRequestCreated,
			Request: &models.ServiceRequest{ID: "req-1"},
		})
	})
}

func TestRouterRecoversTransportPanics(t *testing.T) {
	transport := &fakeTransport{panicOn: true}
	router := NewRouter(transport, nil)

	require.NotPanics(t, func() {
		router.Publish(models.NotificationEvent{
			Kind:    models.EventRequestCreated,
			Request: &models.ServiceRequest{ID: "req-1"},
		})
	})
}
