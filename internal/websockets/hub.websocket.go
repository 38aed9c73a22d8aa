package websockets

import (
	"sync"
)

const (
	STATUS_UNAUTHENTICATED = iota
	STATUS_AUTHENTICATED
	STATUS_CLOSED
)

type Hub struct {
	register   chan *Client
	unregister chan *Client
	clients    map[string]*Client
	mutex      sync.RWMutex
}

func (h *Hub) run(m *Manager) {
	for {
		select {
		case client := <-h.register:
			m.registerClient(client)

		case client := <-h.unregister:
			m.unregisterClient(client)

		case <-m.ctx.Done():
			m.closeAllClients()
			return
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	log := m.log.Function("registerClient")

	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	m.hub.clients[client.ID] = client

	log.Info("Client registered", "clientID", client.ID, "clients", len(m.hub.clients))
}

func (m *Manager) unregisterClient(client *Client) {
	log := m.log.Function("unregisterClient")

	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	if _, ok := m.hub.clients[client.ID]; !ok {
		return
	}
	delete(m.hub.clients, client.ID)

	log.Info(
		"Client unregistered",
		"clientID",
		client.ID,
		"userID",
		client.UserID(),
		"clients",
		len(m.hub.clients),
	)
}

func (m *Manager) closeAllClients() {
	m.hub.mutex.Lock()
	clients := make([]*Client, 0, len(m.hub.clients))
	for _, client := range m.hub.clients {
		clients = append(clients, client)
	}
	clear(m.hub.clients)
	m.hub.mutex.Unlock()

	for _, client := range clients {
		client.close()
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.hub.mutex.RLock()
	defer m.hub.mutex.RUnlock()
	return len(m.hub.clients)
}
