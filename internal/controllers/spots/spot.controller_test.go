package spotController

import (
	"context"
	"errors"
	"testing"

	"findmyspot/config"
	"findmyspot/internal/database"
	"findmyspot/internal/models"
	"findmyspot/internal/repositories/repotest"
	"findmyspot/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(store *repotest.Store) SpotControllerInterface {
	cfg := config.Config{FewSpotsThreshold: config.DefaultFewSpotsThreshold}
	return New(store.Repository().ParkingSpot, database.DB{}, cfg)
}

func TestSpotController_List(t *testing.T) {
	store := repotest.NewStore()
	store.AddSpot(2, 10, 10)
	store.AddSpot(1, 10, 0)
	store.AddSpot(3, 10, 9)

	views, err := newTestController(store).List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Equal(t, 1, views[0].BasementNumber)
	assert.Equal(t, models.SpotStatusAvailable, views[0].Status)
	assert.Equal(t, 10, views[0].AvailableSpaces)

	assert.Equal(t, 2, views[1].BasementNumber)
	assert.Equal(t, models.SpotStatusFull, views[1].Status)
	assert.Equal(t, float64(100), views[1].OccupancyPercentage)

	assert.Equal(t, 3, views[2].BasementNumber)
	assert.Equal(t, models.SpotStatusFewSpots, views[2].Status)
}

func TestSpotController_Get(t *testing.T) {
	store := repotest.NewStore()
	spot := store.AddSpot(1, 20, 5)
	controller := newTestController(store)

	tests := []struct {
		name    string
		id      uuid.UUID
		fail    error
		wantErr error
	}{
		{name: "found", id: spot.ID},
		{name: "missing", id: uuid.New(), wantErr: services.ErrNotFound},
		{name: "storage failure", id: spot.ID, fail: errors.New("broken pipe"), wantErr: services.ErrTransport},
		{name: "deadline", id: spot.ID, fail: context.DeadlineExceeded, wantErr: services.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.fail != nil {
				store.FailOn("spot.GetByID", tt.fail)
			}

			view, err := controller.Get(context.Background(), tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, spot.ID, view.ID)
			assert.Equal(t, 15, view.AvailableSpaces)
		})
	}
}

func TestSpotController_ListFailures(t *testing.T) {
	store := repotest.NewStore()
	store.AddSpot(1, 10, 0)
	controller := newTestController(store)

	tests := []struct {
		name    string
		fail    error
		wantErr error
	}{
		{name: "transport", fail: errors.New("connection refused"), wantErr: services.ErrTransport},
		{name: "deadline", fail: context.DeadlineExceeded, wantErr: services.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.FailOn("spot.GetAll", tt.fail)

			views, err := controller.List(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, views)
		})
	}
}
