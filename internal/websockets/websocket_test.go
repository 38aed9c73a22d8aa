package websockets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"findmyspot/config"
	"findmyspot/internal/database"
	"findmyspot/internal/models"
	"findmyspot/internal/repositories/repotest"
	"findmyspot/internal/services"
	"findmyspot/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	inbound  chan Message
	outbound chan Message

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan Message, 16),
		outbound: make(chan Message, 64),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadJSON(v any) error {
	select {
	case message := <-c.inbound:
		raw, err := json.Marshal(message)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, v)
	case <-c.closed:
		return io.EOF
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	message, ok := v.(Message)
	if !ok {
		return errors.New("unexpected payload")
	}
	select {
	case c.outbound <- message:
		return nil
	case <-c.closed:
		return io.ErrClosedPipe
	}
}

func (c *fakeConn) WriteMessage(int, []byte) error            { return nil }
func (c *fakeConn) SetReadLimit(int64)                        {}
func (c *fakeConn) SetReadDeadline(time.Time) error           { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error          { return nil }
func (c *fakeConn) SetPongHandler(func(appData string) error) {}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// next returns the next outbound message of messageType, skipping others.
func (c *fakeConn) next(t *testing.T, messageType string) Message {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case message := <-c.outbound:
			if message.Type == messageType {
				return message
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s message", messageType)
		}
	}
}

type stubVerifier struct{}

func (stubVerifier) ValidateIDToken(_ context.Context, idToken string) (*types.TokenInfo, error) {
	if idToken != "good-token" {
		return nil, services.ErrUnauthorized
	}
	return &types.TokenInfo{UserID: "subject-1", Name: "Ada Lovelace", Valid: true}, nil
}

type wsFixture struct {
	manager *Manager
	store   *repotest.Store
	feed    *services.OccupancyFeed
	spot    models.ParkingSpot
}

func newWSFixture(t *testing.T) wsFixture {
	t.Helper()

	store := repotest.NewStore()
	spot := store.AddSpot(1, 10, 2)
	feed := services.NewOccupancyFeed(database.DB{}, store.Repository().ParkingSpot, nil)
	cfg := config.Config{FewSpotsThreshold: config.DefaultFewSpotsThreshold}

	manager, err := New(database.DB{}, cfg, stubVerifier{}, store.Repository().User, feed)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return wsFixture{manager: manager, store: store, feed: feed, spot: spot}
}

func (f wsFixture) connect(t *testing.T) (*fakeConn, chan struct{}) {
	t.Helper()

	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.manager.Serve(conn)
	}()

	conn.next(t, MESSAGE_TYPE_AUTH_REQUEST)
	return conn, done
}

func authenticate(t *testing.T, conn *fakeConn) Message {
	t.Helper()

	conn.inbound <- Message{Type: MESSAGE_TYPE_AUTH_RESPONSE, Data: map[string]any{"token": "good-token"}}
	return conn.next(t, MESSAGE_TYPE_AUTH_SUCCESS)
}

func waitClosed(t *testing.T, done chan struct{}) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not closed")
	}
}

func TestManager_AuthHandshake(t *testing.T) {
	f := newWSFixture(t)
	conn, _ := f.connect(t)

	success := authenticate(t, conn)
	require.NotEmpty(t, success.UserID)
	assert.Equal(t, success.UserID, success.Data["userId"])

	userID, err := uuid.Parse(success.UserID)
	require.NoError(t, err)
	user, err := f.store.Repository().User.GetByID(context.Background(), nil, userID)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", user.OIDCUserID)
}

func TestManager_AuthFailure(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{name: "missing token", data: map[string]any{}},
		{name: "invalid token", data: map[string]any{"token": "forged"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWSFixture(t)
			conn, done := f.connect(t)

			conn.inbound <- Message{Type: MESSAGE_TYPE_AUTH_RESPONSE, Data: tt.data}
			failure := conn.next(t, MESSAGE_TYPE_AUTH_FAILURE)
			assert.NotEmpty(t, failure.Data["reason"])

			waitClosed(t, done)
		})
	}
}

func TestManager_RequiresAuthentication(t *testing.T) {
	f := newWSFixture(t)
	conn, _ := f.connect(t)

	conn.inbound <- Message{Type: MESSAGE_TYPE_SUBSCRIBE}
	message := conn.next(t, MESSAGE_TYPE_ERROR)
	assert.Equal(t, "authentication_required", message.Action)
}

func TestManager_SpotSubscription(t *testing.T) {
	f := newWSFixture(t)
	conn, _ := f.connect(t)
	authenticate(t, conn)

	conn.inbound <- Message{Type: MESSAGE_TYPE_SUBSCRIBE, Data: map[string]any{"spotId": f.spot.ID.String()}}
	conn.next(t, MESSAGE_TYPE_SUBSCRIBED)

	initial := conn.next(t, MESSAGE_TYPE_SPOT_UPDATE)
	view, ok := initial.Data["spot"].(types.SpotView)
	require.True(t, ok)
	assert.Equal(t, 2, view.OccupiedSpaces)
	assert.Equal(t, 8, view.AvailableSpaces)

	updated := f.spot
	updated.OccupiedSpaces = 3
	updated.Version = f.spot.Version + 1
	f.feed.Publish(context.Background(), updated)

	live := conn.next(t, MESSAGE_TYPE_SPOT_UPDATE)
	view, ok = live.Data["spot"].(types.SpotView)
	require.True(t, ok)
	assert.Equal(t, 3, view.OccupiedSpaces)

	conn.inbound <- Message{Type: MESSAGE_TYPE_UNSUBSCRIBE, Data: map[string]any{"spotId": f.spot.ID.String()}}
	conn.next(t, MESSAGE_TYPE_UNSUBSCRIBED)

	assert.Eventually(t, func() bool { return f.feed.SubscriberCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestManager_SubscribeErrors(t *testing.T) {
	tests := []struct {
		name   string
		spotID string
		reason string
	}{
		{name: "malformed id", spotID: "not-a-uuid", reason: "invalid spotId"},
		{name: "unknown spot", spotID: uuid.NewString(), reason: "parking spot not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWSFixture(t)
			conn, _ := f.connect(t)
			authenticate(t, conn)

			conn.inbound <- Message{Type: MESSAGE_TYPE_SUBSCRIBE, Data: map[string]any{"spotId": tt.spotID}}
			message := conn.next(t, MESSAGE_TYPE_ERROR)
			assert.Equal(t, tt.reason, message.Data["reason"])
		})
	}
}

func TestManager_DisconnectReleasesSubscriptions(t *testing.T) {
	f := newWSFixture(t)
	conn, done := f.connect(t)
	authenticate(t, conn)

	conn.inbound <- Message{Type: MESSAGE_TYPE_SUBSCRIBE}
	subscribed := conn.next(t, MESSAGE_TYPE_SUBSCRIBED)
	assert.Equal(t, "all", subscribed.Data["spotId"])
	assert.Equal(t, 1, f.feed.SubscriberCount())

	require.NoError(t, conn.Close())
	waitClosed(t, done)

	assert.Eventually(t, func() bool {
		return f.feed.SubscriberCount() == 0 && f.manager.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
