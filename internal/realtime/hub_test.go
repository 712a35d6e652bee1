package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campushq/helpdesk-api/internal/audience"
	"github.com/campushq/helpdesk-api/internal/models"
)

func connect(t *testing.T, hub *Hub, userID string, role models.UserRole) *Client {
	t.Helper()
	client := NewClient(models.Identity{UserID: userID, Role: role}, 8)
	hub.Register(client)
	return client
}

func drain(c *Client) []string {
	frames := make([]string, 0, len(c.Send))
	for {
		select {
		case data := <-c.Send:
			frames = append(frames, string(data))
		default:
			return frames
		}
	}
}

func TestHubPublishByRoleAndUser(t *testing.T) {
	hub := NewHub()
	studentA := connect(t, hub, "student-1", models.RoleStudent)
	studentB := connect(t, hub, "student-2", models.RoleStudent)
	team := connect(t, hub, "team-1", models.RoleTeam)

	require.NoError(t, hub.Publish(audience.ForRole(models.RoleStudent), map[string]string{"event": "role"}))
	require.Len(t, drain(studentA), 1)
	require.Len(t, drain(studentB), 1)
	require.Empty(t, drain(team))

	require.NoError(t, hub.Publish(audience.ForUser("student-1"), map[string]string{"event": "direct"}))
	require.Len(t, drain(studentA), 1)
	require.Empty(t, drain(studentB))
}

func TestHubMultipleConnectionsPerUser(t *testing.T) {
	hub := NewHub()
	tab1 := connect(t, hub, "student-1", models.RoleStudent)
	tab2 := connect(t, hub, "student-1", models.RoleStudent)

	require.NoError(t, hub.Publish(audience.ForUser("student-1"), map[string]string{"event": "direct"}))
	require.Len(t, drain(tab1), 1)
	require.Len(t, drain(tab2), 1)
	require.Equal(t, 2, hub.ClientCount())
}

func TestHubRequestWatchChannels(t *testing.T) {
	hub := NewHub()
	watcher := connect(t, hub, "team-1", models.RoleTeam)
	bystander := connect(t, hub, "team-2", models.RoleTeam)

	hub.Watch(watcher, "req-1")
	require.NoError(t, hub.Publish(audience.ForRequest("req-1"), map[string]string{"event": "watch"}))
	require.Len(t, drain(watcher), 1)
	require.Empty(t, drain(bystander))

	hub.Unwatch(watcher, "req-1")
	require.NoError(t, hub.Publish(audience.ForRequest("req-1"), map[string]string{"event": "watch"}))
	require.Empty(t, drain(watcher))
}

func TestHubPublishMatching(t *testing.T) {
	hub := NewHub()
	student := connect(t, hub, "student-1", models.RoleStudent)
	team := connect(t, hub, "team-1", models.RoleTeam)

	err := hub.PublishMatching(func(id models.Identity) bool {
		return id.Role == models.RoleTeam
	}, map[string]string{"event": "staff-only"})
	require.NoError(t, err)
	require.Empty(t, drain(student))

	frames := drain(team)
	require.Len(t, frames, 1)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &decoded))
	require.Equal(t, "staff-only", decoded["event"])
}

func TestHubSlowConsumerDropsFrames(t *testing.T) {
	hub := NewHub()
	client := NewClient(models.Identity{UserID: "student-1", Role: models.RoleStudent}, 1)
	hub.Register(client)

	require.NoError(t, hub.Publish(audience.ForUser("student-1"), map[string]string{"n": "1"}))
	// Buffer full: this frame is dropped, not blocked on.
	require.NoError(t, hub.Publish(audience.ForUser("student-1"), map[string]string{"n": "2"}))
	require.Len(t, drain(client), 1)
}

func TestHubConcurrentPublishAndClose(t *testing.T) {
	hub := NewHub()
	clients := make([]*Client, 0, 8)
	for i := 0; i < 8; i++ {
		clients = append(clients, connect(t, hub, "student-1", models.RoleStudent))
	}

	var wg sync.WaitGroup
	wg.Add(len(clients) + 1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = hub.Publish(audience.ForUser("student-1"), map[string]string{"event": "tick"})
		}
	}()
	for _, client := range clients {
		go func(c *Client) {
			defer wg.Done()
			c.Close()
		}(client)
	}
	wg.Wait()

	require.Zero(t, hub.ClientCount())
	require.NoError(t, hub.Publish(audience.ForUser("student-1"), map[string]string{"event": "late"}))
}

func TestHubCloseDetachesClient(t *testing.T) {
	hub := NewHub()
	client := connect(t, hub, "student-1", models.RoleStudent)
	hub.Watch(client, "req-1")

	client.Close()
	client.Close() // idempotent

	require.Zero(t, hub.ClientCount())
	require.NoError(t, hub.Publish(audience.ForUser("student-1"), map[string]string{"event": "late"}))
	require.NoError(t, hub.Publish(audience.ForRequest("req-1"), map[string]string{"event": "late"}))
}
