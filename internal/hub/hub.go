// Package hub pushes order events to SockJS clients subscribed to a screen view.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"kioskpos/internal/events"
	"kioskpos/internal/models"
)

const (
	ViewAll     = ""
	ViewKitchen = "kitchen"
	ViewCashier = "cashier"
	ViewMonitor = "monitor"
	// ViewNone keeps the connection open without delivering anything.
	ViewNone = "none"
)

// viewStatuses lists the statuses each screen cares about. An event is sent
// when the order enters or leaves one of them.
var viewStatuses = map[string][]string{
	ViewKitchen: {models.StatusInKitchen, models.StatusReady},
	ViewCashier: {models.StatusPendingPayment},
	ViewMonitor: {models.StatusOnDisplay},
}

type Client struct {
	ID   string
	Send chan []byte
	View string
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action string `json:"action"`
	View   string `json:"view"`
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateView(client *Client, view string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.View = view
}

// Handle applies a subscribe or unsubscribe message from client. Anything
// else is ignored.
func (h *Hub) Handle(client *Client, data []byte) {
	msg, ok := ParseSubscribe(data)
	if !ok {
		return
	}
	if msg.Action == "unsubscribe" {
		h.UpdateView(client, ViewNone)
		return
	}
	h.UpdateView(client, msg.View)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts event to every client whose view it touches. Slow
// clients miss messages rather than block the publisher.
func (h *Hub) Publish(ctx context.Context, event events.Event) error {
	payload, err := event.Encode()
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.View, event) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
	return nil
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
	return nil
}

func match(view string, event events.Event) bool {
	if view == ViewAll {
		return true
	}
	statuses, ok := viewStatuses[view]
	if !ok {
		return false
	}
	for _, status := range statuses {
		if event.Order.Status == status || event.PreviousStatus == status {
			return true
		}
	}
	return false
}

func ValidView(view string) bool {
	if view == ViewAll {
		return true
	}
	_, ok := viewStatuses[view]
	return ok
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	if msg.Action == "subscribe" && !ValidView(msg.View) {
		return SubscribeMessage{}, false
	}
	return msg, true
}
