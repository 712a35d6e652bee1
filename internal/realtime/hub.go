// Package realtime is the connection/channel-membership substrate behind the
// notification router. It tracks connected identities by user, by role, and
// by watched request, and pushes payloads over already-established websocket
// connections. It knows nothing about domain events.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/campushq/helpdesk-api/internal/audience"
	"github.com/campushq/helpdesk-api/internal/models"
)

// Hub maintains the set of active clients and the channel indexes.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	byUser    map[string]map[*Client]struct{}
	byRole    map[models.UserRole]map[*Client]struct{}
	byRequest map[string]map[*Client]struct{}
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		byUser:    make(map[string]map[*Client]struct{}),
		byRole:    make(map[models.UserRole]map[*Client]struct{}),
		byRequest: make(map[string]map[*Client]struct{}),
	}
}

// Register attaches a client to the hub and indexes it by user and role.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	h.clients[c] = struct{}{}
	addIndex(h.byUser, c.Identity.UserID, c)
	addIndex(h.byRole, c.Identity.Role, c)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	dropIndex(h.byUser, c.Identity.UserID, c)
	dropIndex(h.byRole, c.Identity.Role, c)
	for requestID, set := range h.byRequest {
		if _, ok := set[c]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.byRequest, requestID)
			}
		}
	}
}

// Watch subscribes the client to a request's detail channel.
func (h *Hub) Watch(c *Client, requestID string) {
	if requestID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	addIndex(h.byRequest, requestID, c)
}

// Unwatch removes the client from a request's detail channel.
func (h *Hub) Unwatch(c *Client, requestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dropIndex(h.byRequest, requestID, c)
}

// Publish delivers the payload to every connection addressed by the channel.
// Delivery is best effort: unreachable identities are skipped silently and
// slow consumers drop the frame.
func (h *Hub) Publish(ch audience.Channel, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal realtime payload: %w", err)
	}

	h.mu.RLock()
	var targets []*Client
	switch ch.Kind {
	case audience.RoleBroadcast:
		targets = collect(h.byRole[ch.Role])
	case audience.UserChannel:
		targets = collect(h.byUser[ch.UserID])
	case audience.RequestWatch:
		targets = collect(h.byRequest[ch.RequestID])
	default:
		h.mu.RUnlock()
		return fmt.Errorf("unknown channel kind %d", ch.Kind)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.deliver(data)
	}
	return nil
}

// PublishMatching delivers the payload to every connected identity for which
// the predicate holds. Used for data-driven audiences where the channel set
// cannot be derived structurally.
func (h *Hub) PublishMatching(match func(models.Identity) bool, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal realtime payload: %w", err)
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if match == nil || match(c.Identity) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.deliver(data)
	}
	return nil
}

// PublishAll delivers the payload to every connected client.
func (h *Hub) PublishAll(payload interface{}) error {
	return h.PublishMatching(nil, payload)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func addIndex[K comparable](index map[K]map[*Client]struct{}, key K, c *Client) {
	if index[key] == nil {
		index[key] = make(map[*Client]struct{})
	}
	index[key][c] = struct{}{}
}

func dropIndex[K comparable](index map[K]map[*Client]struct{}, key K, c *Client) {
	if set := index[key]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

func collect(set map[*Client]struct{}) []*Client {
	if len(set) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
