package reservationController

import (
	"context"
	"time"

	"findmyspot/internal/models"
	"findmyspot/internal/services"
	"findmyspot/internal/types"
	"findmyspot/pkg/logger"

	"github.com/google/uuid"
)

type ReservationControllerInterface interface {
	Create(
		ctx context.Context,
		user *models.User,
		request *types.CreateReservationRequest,
	) (*types.ReservationView, error)
	GetActive(ctx context.Context, user *models.User) (*types.ReservationView, error)
	History(ctx context.Context, user *models.User, limit int) ([]types.HistoryView, error)
	Confirm(ctx context.Context, user *models.User, reservationID uuid.UUID) (*types.ReservationView, error)
	Cancel(ctx context.Context, user *models.User, reservationID uuid.UUID) (*types.ReservationView, error)
	Complete(ctx context.Context, user *models.User, reservationID uuid.UUID) (*types.HistoryView, error)
}

type ReservationController struct {
	reservations services.ReservationLifecycle
	now          func() time.Time
	log          logger.Logger
}

func New(reservations services.ReservationLifecycle) ReservationControllerInterface {
	return &ReservationController{
		reservations: reservations,
		now:          time.Now,
		log:          logger.New("reservationController"),
	}
}

func (c *ReservationController) Create(
	ctx context.Context,
	user *models.User,
	request *types.CreateReservationRequest,
) (*types.ReservationView, error) {
	log := c.log.TraceFromContext(ctx).Function("Create")

	if request == nil || request.ParkingSpotID == uuid.Nil {
		return nil, log.ErrorWithType(services.ErrNotFound, "parking spot is required")
	}

	reservation, err := c.reservations.Reserve(
		ctx,
		user.ID,
		request.ParkingSpotID,
		request.BasementNumber,
	)
	if err != nil {
		return nil, err
	}

	view := types.NewReservationView(*reservation, c.now())
	return &view, nil
}

// GetActive returns nil without error when the user holds no active
// reservation.
func (c *ReservationController) GetActive(
	ctx context.Context,
	user *models.User,
) (*types.ReservationView, error) {
	reservation, err := c.reservations.GetActive(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, nil
	}

	view := types.NewReservationView(*reservation, c.now())
	return &view, nil
}

func (c *ReservationController) History(
	ctx context.Context,
	user *models.User,
	limit int,
) ([]types.HistoryView, error) {
	history, err := c.reservations.History(ctx, user.ID, limit)
	if err != nil {
		return nil, err
	}

	return types.NewHistoryViews(history), nil
}

func (c *ReservationController) Confirm(
	ctx context.Context,
	user *models.User,
	reservationID uuid.UUID,
) (*types.ReservationView, error) {
	if err := c.authorize(ctx, user, reservationID); err != nil {
		return nil, err
	}

	reservation, err := c.reservations.ConfirmArrival(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	view := types.NewReservationView(*reservation, c.now())
	return &view, nil
}

func (c *ReservationController) Cancel(
	ctx context.Context,
	user *models.User,
	reservationID uuid.UUID,
) (*types.ReservationView, error) {
	if err := c.authorize(ctx, user, reservationID); err != nil {
		return nil, err
	}

	reservation, err := c.reservations.Cancel(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	view := types.NewReservationView(*reservation, c.now())
	return &view, nil
}

func (c *ReservationController) Complete(
	ctx context.Context,
	user *models.User,
	reservationID uuid.UUID,
) (*types.HistoryView, error) {
	if err := c.authorize(ctx, user, reservationID); err != nil {
		return nil, err
	}

	history, err := c.reservations.Complete(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	views := types.NewHistoryViews([]*models.ReservationHistory{history})
	return &views[0], nil
}

// authorize reports another user's reservation as not found so reservation
// ids cannot be enumerated.
func (c *ReservationController) authorize(
	ctx context.Context,
	user *models.User,
	reservationID uuid.UUID,
) error {
	log := c.log.TraceFromContext(ctx).Function("authorize")

	reservation, err := c.reservations.Get(ctx, reservationID)
	if err != nil {
		return err
	}

	if reservation.UserID != user.ID && !user.IsAdmin {
		return log.ErrorWithType(services.ErrNotFound, "reservation not found",
			"reservationID", reservationID, "userID", user.ID)
	}

	return nil
}
