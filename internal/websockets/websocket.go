package websockets

import (
	"context"
	"sync"
	"time"

	"findmyspot/config"
	"findmyspot/internal/database"
	"findmyspot/internal/models"
	"findmyspot/internal/repositories"
	"findmyspot/internal/types"
	"findmyspot/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MESSAGE_TYPE_PING          = "ping"
	MESSAGE_TYPE_PONG          = "pong"
	MESSAGE_TYPE_ERROR         = "error"
	MESSAGE_TYPE_AUTH_REQUEST  = "auth_request"
	MESSAGE_TYPE_AUTH_RESPONSE = "auth_response"
	MESSAGE_TYPE_AUTH_SUCCESS  = "auth_success"
	MESSAGE_TYPE_AUTH_FAILURE  = "auth_failure"
	MESSAGE_TYPE_SUBSCRIBE     = "subscribe"
	MESSAGE_TYPE_UNSUBSCRIBE   = "unsubscribe"
	MESSAGE_TYPE_SUBSCRIBED    = "subscribed"
	MESSAGE_TYPE_UNSUBSCRIBED  = "unsubscribed"
	MESSAGE_TYPE_SPOT_UPDATE   = "spot_update"
	PING_INTERVAL              = 30 * time.Second
	PONG_TIMEOUT               = 60 * time.Second
	WRITE_TIMEOUT              = 10 * time.Second
	MAX_MESSAGE_SIZE           = 64 * 1024
	SEND_CHANNEL_SIZE          = 64
	// Channels
	SYSTEM_CHANNEL = "system"
	SPOTS_CHANNEL  = "spots"
)

type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Channel   string         `json:"channel,omitempty"`
	Action    string         `json:"action,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func newMessage(messageType, channel, action string, data map[string]any) Message {
	return Message{
		ID:        uuid.New().String(),
		Type:      messageType,
		Channel:   channel,
		Action:    action,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// Conn is the part of *websocket.Conn the manager uses.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// TokenVerifier validates the ID token sent in the auth handshake.
type TokenVerifier interface {
	ValidateIDToken(ctx context.Context, idToken string) (*types.TokenInfo, error)
}

// SpotFeed streams parking spot snapshots until ctx is done.
type SpotFeed interface {
	Subscribe(ctx context.Context, spotID uuid.UUID) (<-chan models.ParkingSpot, error)
}

type Client struct {
	ID         string
	Connection Conn
	Manager    *Manager
	send       chan Message

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu            sync.Mutex
	status        int
	userID        uuid.UUID
	subscriptions map[uuid.UUID]context.CancelFunc
}

type Manager struct {
	hub       *Hub
	db        database.DB
	config    config.Config
	identity  TokenVerifier
	userRepo  repositories.UserRepository
	feed      SpotFeed
	threshold decimal.Decimal
	log       logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(
	db database.DB,
	config config.Config,
	identity TokenVerifier,
	userRepo repositories.UserRepository,
	feed SpotFeed,
) (*Manager, error) {
	log := logger.New("websockets")

	ctx, cancel := context.WithCancel(context.Background())
	manager := &Manager{
		hub: &Hub{
			register:   make(chan *Client),
			unregister: make(chan *Client),
			clients:    make(map[string]*Client),
		},
		db:        db,
		config:    config,
		identity:  identity,
		userRepo:  userRepo,
		feed:      feed,
		threshold: config.Threshold(),
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}

	log.Function("New").Info("Starting websocket hub")
	go manager.hub.run(manager)

	return manager, nil
}

// Close disconnects every client and stops the hub.
func (m *Manager) Close() error {
	m.cancel()
	return nil
}

func (m *Manager) HandleWebSocket(c *websocket.Conn) {
	m.Serve(c)
}

// Serve runs a client connection until it disconnects or the manager closes.
func (m *Manager) Serve(conn Conn) {
	log := m.log.Function("Serve")

	client := m.newClient(conn)

	if err := client.sendAuthRequest(); err != nil {
		client.close()
		return
	}

	select {
	case m.hub.register <- client:
	case <-m.ctx.Done():
		client.close()
		return
	}

	defer func() {
		log.Info("Client disconnected", "clientID", client.ID)
		client.close()
		select {
		case m.hub.unregister <- client:
		case <-m.ctx.Done():
		}
	}()

	authTimer := client.startAuthTimeout()
	defer authTimer.Stop()

	go client.readPump()
	client.writePump()
}

func (m *Manager) newClient(conn Conn) *Client {
	ctx, cancel := context.WithCancel(m.ctx)
	return &Client{
		ID:            uuid.New().String(),
		Connection:    conn,
		Manager:       m,
		send:          make(chan Message, SEND_CHANNEL_SIZE),
		ctx:           ctx,
		cancel:        cancel,
		status:        STATUS_UNAUTHENTICATED,
		subscriptions: make(map[uuid.UUID]context.CancelFunc),
	}
}

func (c *Client) Status() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) UserID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// enqueue blocks until the message is queued or the client is gone.
func (c *Client) enqueue(message Message) bool {
	select {
	case c.send <- message:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// close cancels every subscription and the connection. Safe to call more
// than once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.status = STATUS_CLOSED
		c.mu.Unlock()

		c.cancel()
		if err := c.Connection.Close(); err != nil {
			c.Manager.log.Debug("connection already closed", "clientID", c.ID, "error", err)
		}
	})
}

func (c *Client) readPump() {
	log := c.Manager.log.Function("readPump")
	defer c.close()

	c.Connection.SetReadLimit(MAX_MESSAGE_SIZE)
	if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
		log.Er("failed to set read deadline", err, "clientID", c.ID)
	}
	c.Connection.SetPongHandler(func(string) error {
		return c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT))
	})

	for {
		var message Message
		if err := c.Connection.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				log.Er("Unexpected close error", err, "clientID", c.ID)
			}
			return
		}

		message.ID = uuid.New().String()
		message.Timestamp = time.Now()

		c.routeMessage(message)
	}
}

func (c *Client) routeMessage(message Message) {
	log := c.Manager.log.Function("routeMessage")

	if message.Type == MESSAGE_TYPE_AUTH_RESPONSE {
		c.handleAuthResponse(message)
		return
	}

	if c.Status() != STATUS_AUTHENTICATED {
		c.handleUnauthenticatedMessage(message)
		return
	}

	switch message.Type {
	case MESSAGE_TYPE_SUBSCRIBE:
		c.handleSubscribe(message)
	case MESSAGE_TYPE_UNSUBSCRIBE:
		c.handleUnsubscribe(message)
	case MESSAGE_TYPE_PING:
		c.enqueue(newMessage(MESSAGE_TYPE_PONG, SYSTEM_CHANNEL, "pong", nil))
	default:
		log.Warn("Unknown message type", "clientID", c.ID, "type", message.Type)
		c.sendError("unknown message type")
	}
}

func (c *Client) sendError(reason string) {
	c.enqueue(newMessage(MESSAGE_TYPE_ERROR, SYSTEM_CHANNEL, "error", map[string]any{
		"reason": reason,
	}))
}

func (c *Client) writePump() {
	log := c.Manager.log.Function("writePump")

	ticker := time.NewTicker(PING_INTERVAL)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline", err, "clientID", c.ID)
			}
			if err := c.Connection.WriteJSON(message); err != nil {
				log.Er("WebSocket write error", err, "clientID", c.ID, "type", message.Type)
				return
			}
			if message.Type == MESSAGE_TYPE_AUTH_FAILURE {
				return
			}

		case <-ticker.C:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline for ping", err, "clientID", c.ID)
			}
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
