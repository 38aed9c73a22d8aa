package repositories

import (
	"context"
	"errors"
	"time"

	. "findmyspot/internal/models"
	"findmyspot/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReservationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, reservation *Reservation) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Reservation, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Reservation, error)
	GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*Reservation, error)
	UpdateIfActive(
		ctx context.Context,
		tx *gorm.DB,
		id uuid.UUID,
		updates map[string]any,
	) (bool, error)
	GetExpiredUnconfirmed(
		ctx context.Context,
		tx *gorm.DB,
		before time.Time,
		limit int,
	) ([]*Reservation, error)
}

type reservationRepository struct {
	log logger.Logger
}

func NewReservationRepository() ReservationRepository {
	return &reservationRepository{
		log: logger.New("reservationRepository"),
	}
}

// Create inserts a new reservation. A second active reservation for the same
// user violates idx_reservations_one_active_per_user and surfaces as
// gorm.ErrDuplicatedKey.
func (r *reservationRepository) Create(
	ctx context.Context,
	tx *gorm.DB,
	reservation *Reservation,
) error {
	log := r.log.Function("Create")

	if err := gorm.G[Reservation](tx).Create(ctx, reservation); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return log.Err(
			"failed to create reservation",
			err,
			"userID",
			reservation.UserID,
			"spotID",
			reservation.ParkingSpotID,
		)
	}

	return nil
}

func (r *reservationRepository) GetByID(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
) (*Reservation, error) {
	log := r.log.Function("GetByID")

	reservation, err := gorm.G[*Reservation](tx).
		Where(Reservation{BaseUUIDModel: BaseUUIDModel{ID: id}}).
		First(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, log.Err("failed to get reservation", err, "reservationID", id)
	}

	return reservation, nil
}

func (r *reservationRepository) GetByIDForUpdate(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
) (*Reservation, error) {
	log := r.log.Function("GetByIDForUpdate")

	var reservation Reservation
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, log.Err("failed to lock reservation", err, "reservationID", id)
	}

	return &reservation, nil
}

// GetActiveByUser returns nil without error when the user holds no active
// reservation.
func (r *reservationRepository) GetActiveByUser(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
) (*Reservation, error) {
	log := r.log.Function("GetActiveByUser")

	reservations, err := gorm.G[*Reservation](tx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("start_time DESC").
		Limit(1).
		Find(ctx)
	if err != nil {
		return nil, log.Err("failed to get active reservation", err, "userID", userID)
	}

	if len(reservations) == 0 {
		return nil, nil
	}

	return reservations[0], nil
}

// UpdateIfActive applies updates only while the reservation is still active
// and reports whether this call won the transition.
func (r *reservationRepository) UpdateIfActive(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
	updates map[string]any,
) (bool, error) {
	log := r.log.Function("UpdateIfActive")

	result := tx.WithContext(ctx).
		Model(&Reservation{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(updates)
	if result.Error != nil {
		return false, log.Err("failed to update active reservation", result.Error, "reservationID", id)
	}

	return result.RowsAffected == 1, nil
}

func (r *reservationRepository) GetExpiredUnconfirmed(
	ctx context.Context,
	tx *gorm.DB,
	before time.Time,
	limit int,
) ([]*Reservation, error) {
	log := r.log.Function("GetExpiredUnconfirmed")

	reservations, err := gorm.G[*Reservation](tx).
		Where("is_active = ? AND is_confirmed = ? AND expiration_time < ?", true, false, before).
		Order("expiration_time ASC").
		Limit(limit).
		Find(ctx)
	if err != nil {
		return nil, log.Err("failed to get expired reservations", err, "before", before)
	}

	return reservations, nil
}
