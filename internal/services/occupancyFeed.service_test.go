package services

import (
	"context"
	"testing"
	"time"

	"findmyspot/internal/database"
	"findmyspot/internal/events"
	"findmyspot/internal/models"
	"findmyspot/internal/repositories/repotest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, updates <-chan models.ParkingSpot) models.ParkingSpot {
	t.Helper()
	select {
	case spot, ok := <-updates:
		require.True(t, ok, "feed closed unexpectedly")
		return spot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for occupancy update")
		return models.ParkingSpot{}
	}
}

func newTestFeed(store *repotest.Store, bus *events.EventBus) *OccupancyFeed {
	return NewOccupancyFeed(database.DB{}, store.Repository().ParkingSpot, bus)
}

func TestOccupancyFeed_CurrentStateThenUpdates(t *testing.T) {
	store := repotest.NewStore()
	spot := store.AddSpot(1, 50, 10)
	feed := newTestFeed(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := feed.Subscribe(ctx, spot.ID)
	require.NoError(t, err)

	first := receive(t, updates)
	assert.Equal(t, 10, first.OccupiedSpaces)

	next := spot
	next.OccupiedSpaces = 11
	next.Version = 1
	feed.Publish(ctx, next)

	second := receive(t, updates)
	assert.Equal(t, 11, second.OccupiedSpaces)
}

func TestOccupancyFeed_FiltersBySpot(t *testing.T) {
	store := repotest.NewStore()
	watched := store.AddSpot(1, 50, 0)
	other := store.AddSpot(2, 50, 0)
	feed := newTestFeed(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := feed.Subscribe(ctx, watched.ID)
	require.NoError(t, err)
	receive(t, updates)

	otherUpdate := other
	otherUpdate.Version = 1
	feed.Publish(ctx, otherUpdate)

	watchedUpdate := watched
	watchedUpdate.Version = 1
	watchedUpdate.OccupiedSpaces = 1
	feed.Publish(ctx, watchedUpdate)

	assert.Equal(t, watched.ID, receive(t, updates).ID)
}

func TestOccupancyFeed_AllSpots(t *testing.T) {
	store := repotest.NewStore()
	store.AddSpot(2, 40, 0)
	store.AddSpot(1, 50, 0)
	feed := newTestFeed(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := feed.Subscribe(ctx, uuid.Nil)
	require.NoError(t, err)

	assert.Equal(t, 1, receive(t, updates).BasementNumber)
	assert.Equal(t, 2, receive(t, updates).BasementNumber)
}

func TestOccupancyFeed_LatestWinsAndStaleSkipped(t *testing.T) {
	store := repotest.NewStore()
	spot := store.AddSpot(1, 50, 0)
	feed := newTestFeed(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := feed.Subscribe(ctx, spot.ID)
	require.NoError(t, err)
	receive(t, updates)

	for version := int64(1); version <= 5; version++ {
		next := spot
		next.Version = version
		next.OccupiedSpaces = int(version)
		feed.Publish(ctx, next)
	}

	stale := spot
	stale.Version = 2
	stale.OccupiedSpaces = 2
	feed.Publish(ctx, stale)

	latest := receive(t, updates)
	for latest.Version < 5 {
		latest = receive(t, updates)
	}
	assert.Equal(t, 5, latest.OccupiedSpaces)

	select {
	case spot := <-updates:
		t.Fatalf("unexpected snapshot after latest: version %d", spot.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOccupancyFeed_CancelClosesAndUnregisters(t *testing.T) {
	store := repotest.NewStore()
	spot := store.AddSpot(1, 50, 0)
	feed := newTestFeed(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := feed.Subscribe(ctx, spot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.SubscriberCount())

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-updates:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, feed.SubscriberCount())

	resubscribed, err := feed.Subscribe(context.Background(), spot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, receive(t, resubscribed).OccupiedSpaces)
}

func TestOccupancyFeed_UnknownSpot(t *testing.T) {
	store := repotest.NewStore()
	feed := newTestFeed(store, nil)

	_, err := feed.Subscribe(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, feed.SubscriberCount())
}

func TestOccupancyFeed_DeliversThroughEventBus(t *testing.T) {
	store := repotest.NewStore()
	spot := store.AddSpot(1, 50, 0)
	bus := events.New(nil)
	defer bus.Close()
	feed := newTestFeed(store, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := feed.Subscribe(ctx, spot.ID)
	require.NoError(t, err)
	receive(t, updates)

	next := spot
	next.Version = 3
	next.OccupiedSpaces = 7
	feed.Publish(ctx, next)

	got := receive(t, updates)
	assert.Equal(t, 7, got.OccupiedSpaces)
	assert.Equal(t, int64(3), got.Version)
}

func TestOccupancyFeed_ClosedBusFallsBackToLocal(t *testing.T) {
	store := repotest.NewStore()
	spot := store.AddSpot(1, 50, 0)
	bus := events.New(nil)
	require.NoError(t, bus.Close())

	feed := newTestFeed(store, bus)
	assert.Nil(t, feed.bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := feed.Subscribe(ctx, spot.ID)
	require.NoError(t, err)
	receive(t, updates)

	next := spot
	next.Version = 1
	next.OccupiedSpaces = 1
	feed.Publish(ctx, next)

	assert.Equal(t, 1, receive(t, updates).OccupiedSpaces)
}

func TestOccupancyFeed_WiredToReservations(t *testing.T) {
	f := newReservationFixture(t)
	spot := f.store.AddSpot(4, 5, 0)
	feed := newTestFeed(f.store, nil)
	f.service.publisher = feed

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := feed.Subscribe(ctx, spot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, receive(t, updates).OccupiedSpaces)

	_, err = f.service.Reserve(ctx, uuid.New(), spot.ID, 4)
	require.NoError(t, err)

	assert.Equal(t, 1, receive(t, updates).OccupiedSpaces)
}
