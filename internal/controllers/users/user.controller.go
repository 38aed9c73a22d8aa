package userController

import (
	"context"
	"time"

	"findmyspot/config"
	. "findmyspot/internal/models"
	"findmyspot/internal/repositories"
	"findmyspot/internal/services"
	"findmyspot/internal/types"
	"findmyspot/pkg/logger"
)

type UserController struct {
	reservations services.ReservationLifecycle
	Config       config.Config
	now          func() time.Time
	log          logger.Logger
}

type UserControllerInterface interface {
	GetProfile(ctx context.Context, user *User) (*ProfileResponse, error)
}

type ProfileResponse struct {
	User              UserProfile               `json:"user"`
	Stats             repositories.HistoryStats `json:"stats"`
	ActiveReservation *types.ReservationView    `json:"activeReservation,omitempty"`
}

func New(reservations services.ReservationLifecycle, config config.Config) UserControllerInterface {
	return &UserController{
		reservations: reservations,
		Config:       config,
		now:          time.Now,
		log:          logger.New("userController"),
	}
}

// GetProfile returns the user with reservation statistics and the current
// active reservation, if any.
func (uc *UserController) GetProfile(ctx context.Context, user *User) (*ProfileResponse, error) {
	log := uc.log.TraceFromContext(ctx).Function("GetProfile")

	stats, err := uc.reservations.Stats(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	response := &ProfileResponse{
		User:  user.ToProfile(),
		Stats: *stats,
	}

	active, err := uc.reservations.GetActive(ctx, user.ID)
	if err != nil {
		log.Warn("failed to load active reservation for profile", "userID", user.ID, "error", err)
		return response, nil
	}
	if active != nil {
		view := types.NewReservationView(*active, uc.now())
		response.ActiveReservation = &view
	}

	return response, nil
}
