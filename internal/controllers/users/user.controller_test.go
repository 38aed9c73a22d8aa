package userController

import (
	"context"
	"errors"
	"testing"

	"findmyspot/config"
	"findmyspot/internal/database"
	"findmyspot/internal/repositories/repotest"
	"findmyspot/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserController_GetProfile(t *testing.T) {
	store := repotest.NewStore()
	spot := store.AddSpot(1, 5, 0)
	user := store.AddUser("subject-1", false)

	cfg := config.Config{
		ReservationDurationSeconds: config.DefaultReservationDurationSeconds,
		OperationTimeoutSeconds:    5,
	}
	reservations := services.NewReservationService(
		database.DB{},
		store.Repository(),
		store,
		services.NewLocalLocker(),
		nil,
		cfg,
	)
	controller := New(reservations, cfg)
	ctx := context.Background()

	profile, err := controller.GetProfile(ctx, &user)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), profile.User.ID)
	assert.Zero(t, profile.Stats.TotalReservations)
	assert.Nil(t, profile.ActiveReservation)

	first, err := reservations.Reserve(ctx, user.ID, spot.ID, 1)
	require.NoError(t, err)
	_, err = reservations.ConfirmArrival(ctx, first.ID)
	require.NoError(t, err)
	_, err = reservations.Complete(ctx, first.ID)
	require.NoError(t, err)

	second, err := reservations.Reserve(ctx, user.ID, spot.ID, 1)
	require.NoError(t, err)

	profile, err = controller.GetProfile(ctx, &user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.Stats.TotalReservations)
	assert.Equal(t, int64(1), profile.Stats.ConfirmedReservations)
	require.NotNil(t, profile.ActiveReservation)
	assert.Equal(t, second.ID, profile.ActiveReservation.ID)

	store.FailOn("history.GetUserStats", errors.New("connection refused"))
	_, err = controller.GetProfile(ctx, &user)
	assert.ErrorIs(t, err, services.ErrTransport)
}
