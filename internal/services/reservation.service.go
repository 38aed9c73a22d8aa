package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"findmyspot/config"
	"findmyspot/internal/constants"
	"findmyspot/internal/database"
	"findmyspot/internal/models"
	"findmyspot/internal/repositories"
	"findmyspot/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultHistoryLimit = 50
	expirySweepBatch    = 100
)

// ReservationLifecycle is the reservation state machine:
// Active-Unconfirmed -> Active-Confirmed -> Completed, with Cancelled
// reachable from either active state.
type ReservationLifecycle interface {
	Reserve(
		ctx context.Context,
		userID, spotID uuid.UUID,
		basementNumber int,
	) (*models.Reservation, error)
	ConfirmArrival(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)
	Cancel(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)
	Complete(ctx context.Context, reservationID uuid.UUID) (*models.ReservationHistory, error)
	GetActive(ctx context.Context, userID uuid.UUID) (*models.Reservation, error)
	Get(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ReservationHistory, error)
	Stats(ctx context.Context, userID uuid.UUID) (*repositories.HistoryStats, error)
	ExpireStale(ctx context.Context) (int, error)
}

// OccupancyPublisher receives every committed occupancy change.
type OccupancyPublisher interface {
	Publish(ctx context.Context, spot models.ParkingSpot)
}

type ReservationService struct {
	db         database.DB
	repos      repositories.Repository
	transactor Transactor
	locker     Locker
	publisher  OccupancyPublisher
	duration   time.Duration
	timeout    time.Duration
	now        func() time.Time
	log        logger.Logger
}

func NewReservationService(
	db database.DB,
	repos repositories.Repository,
	transactor Transactor,
	locker Locker,
	publisher OccupancyPublisher,
	cfg config.Config,
) *ReservationService {
	return &ReservationService{
		db:         db,
		repos:      repos,
		transactor: transactor,
		locker:     locker,
		publisher:  publisher,
		duration:   cfg.ReservationDuration(),
		timeout:    cfg.OperationTimeout(),
		now:        time.Now,
		log:        logger.New("ReservationService"),
	}
}

// WithClock replaces the time source.
func (s *ReservationService) WithClock(now func() time.Time) *ReservationService {
	s.now = now
	return s
}

func (s *ReservationService) publish(ctx context.Context, spot models.ParkingSpot) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, spot)
}

// committed clears the spot list and history caches and publishes the new
// occupancy. It only runs once the transaction has committed.
func (s *ReservationService) committed(
	ctx context.Context,
	spot models.ParkingSpot,
	historyUser *uuid.UUID,
) {
	s.repos.ParkingSpot.ClearCache(ctx)
	if historyUser != nil {
		s.repos.History.ClearUserHistoryCache(ctx, *historyUser)
	}
	s.publish(ctx, spot)
}

// Reserve places a hold on one space of the basement for userID. The per-user
// lock covers the whole check-then-act so concurrent requests from one user
// cannot both pass the active reservation check.
func (s *ReservationService) Reserve(
	ctx context.Context,
	userID, spotID uuid.UUID,
	basementNumber int,
) (*models.Reservation, error) {
	log := s.log.TraceFromContext(ctx).Function("Reserve")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, userID.String())
	if err != nil {
		return nil, Classify(ctx, log, "failed to acquire reservation lock", err)
	}
	defer unlock()

	var reservation *models.Reservation
	var spot *models.ParkingSpot

	err = s.transactor.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		active, err := s.repos.Reservation.GetActiveByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if active != nil {
			return log.ErrorWithType(ErrConflict, "user already has an active reservation",
				"userID", userID, "reservationID", active.ID)
		}

		current, err := s.repos.ParkingSpot.GetByID(ctx, tx, spotID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return log.ErrorWithType(ErrNotFound, "parking spot not found", "spotID", spotID)
			}
			return err
		}
		if current.BasementNumber != basementNumber {
			return log.ErrorWithType(ErrNotFound, "basement does not match parking spot",
				"spotID", spotID, "basementNumber", basementNumber)
		}

		spot, err = s.repos.ParkingSpot.AdjustOccupied(ctx, tx, spotID, 1)
		if err != nil {
			if errors.Is(err, repositories.ErrOccupancyOutOfRange) {
				return log.ErrorWithType(ErrCapacityExceeded, "parking spot is full",
					"spotID", spotID, "basementNumber", basementNumber)
			}
			return err
		}

		now := s.now()
		reservation = &models.Reservation{
			UserID:         userID,
			ParkingSpotID:  spotID,
			BasementNumber: basementNumber,
			StartTime:      now,
			ExpirationTime: now.Add(s.duration),
			IsActive:       true,
		}

		if err := s.repos.Reservation.Create(ctx, tx, reservation); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return log.ErrorWithType(ErrConflict, "user already has an active reservation",
					"userID", userID)
			}
			return err
		}

		return nil
	})
	if err != nil {
		return nil, failure(ctx, log, "failed to reserve parking spot", err)
	}

	log.Info("Reservation created",
		"reservationID", reservation.ID,
		"userID", userID,
		"basementNumber", basementNumber,
		"occupied", spot.OccupiedSpaces,
	)
	s.committed(ctx, *spot, nil)

	return reservation, nil
}

// ConfirmArrival marks the reservation as confirmed. Confirming twice is a
// no-op; an expired unconfirmed reservation can no longer be confirmed.
func (s *ReservationService) ConfirmArrival(
	ctx context.Context,
	reservationID uuid.UUID,
) (*models.Reservation, error) {
	log := s.log.TraceFromContext(ctx).Function("ConfirmArrival")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var reservation *models.Reservation
	err := s.transactor.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		reservation, err = s.lockActive(ctx, tx, log, reservationID)
		if err != nil {
			return err
		}

		if reservation.IsConfirmed {
			return nil
		}

		if reservation.IsExpired(s.now()) {
			return log.ErrorWithType(ErrInvalidState, "reservation has expired",
				"reservationID", reservationID)
		}

		updated, err := s.repos.Reservation.UpdateIfActive(ctx, tx, reservationID, map[string]any{
			models.ReservationColumnIsConfirmed: true,
		})
		if err != nil {
			return err
		}
		if !updated {
			return log.ErrorWithType(ErrInvalidState, "reservation is no longer active",
				"reservationID", reservationID)
		}

		reservation.IsConfirmed = true
		return nil
	})
	if err != nil {
		return nil, failure(ctx, log, "failed to confirm arrival", err)
	}

	return reservation, nil
}

// Cancel releases an active reservation's space. No history is recorded; the
// reservation keeps cancelledAt and cancelReason instead.
func (s *ReservationService) Cancel(
	ctx context.Context,
	reservationID uuid.UUID,
) (*models.Reservation, error) {
	log := s.log.TraceFromContext(ctx).Function("Cancel")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reservation, err := s.cancel(ctx, log, reservationID, models.CancelReasonUser)
	if err != nil {
		return nil, failure(ctx, log, "failed to cancel reservation", err)
	}

	return reservation, nil
}

// Complete ends an active reservation, releases its space and records exactly
// one history entry.
func (s *ReservationService) Complete(
	ctx context.Context,
	reservationID uuid.UUID,
) (*models.ReservationHistory, error) {
	log := s.log.TraceFromContext(ctx).Function("Complete")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var history *models.ReservationHistory
	var spot *models.ParkingSpot

	err := s.transactor.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		reservation, err := s.lockActive(ctx, tx, log, reservationID)
		if err != nil {
			return err
		}

		now := s.now()
		spot, err = s.release(ctx, tx, log, reservation, map[string]any{
			models.ReservationColumnIsActive:    false,
			models.ReservationColumnIsCompleted: true,
		})
		if err != nil {
			return err
		}

		history = &models.ReservationHistory{
			UserID:         reservation.UserID,
			ReservationID:  reservation.ID,
			BasementNumber: reservation.BasementNumber,
			Date:           now,
			WasConfirmed:   reservation.IsConfirmed,
			Duration:       models.DurationMinutes(reservation.StartTime, now),
		}

		return s.repos.History.Create(ctx, tx, history)
	})
	if err != nil {
		return nil, failure(ctx, log, "failed to complete reservation", err)
	}

	log.Info("Reservation completed",
		"reservationID", reservationID,
		"duration", history.Duration,
		"wasConfirmed", history.WasConfirmed,
	)
	s.committed(ctx, *spot, &history.UserID)

	return history, nil
}

// GetActive returns the user's active reservation, or nil when there is none.
func (s *ReservationService) GetActive(
	ctx context.Context,
	userID uuid.UUID,
) (*models.Reservation, error) {
	log := s.log.TraceFromContext(ctx).Function("GetActive")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reservation, err := s.repos.Reservation.GetActiveByUser(ctx, s.db.SQLWithContext(ctx), userID)
	if err != nil {
		return nil, Classify(ctx, log, "failed to get active reservation", err)
	}

	return reservation, nil
}

func (s *ReservationService) Get(
	ctx context.Context,
	reservationID uuid.UUID,
) (*models.Reservation, error) {
	log := s.log.TraceFromContext(ctx).Function("Get")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reservation, err := s.repos.Reservation.GetByID(ctx, s.db.SQLWithContext(ctx), reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, log.ErrorWithType(ErrNotFound, "reservation not found",
				"reservationID", reservationID)
		}
		return nil, Classify(ctx, log, "failed to get reservation", err)
	}

	return reservation, nil
}

// History lists the user's completed reservations, newest first.
func (s *ReservationService) History(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
) ([]*models.ReservationHistory, error) {
	log := s.log.TraceFromContext(ctx).Function("History")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, constants.MaxHistoryEntries)

	history, err := s.repos.History.GetUserHistory(ctx, s.db.SQLWithContext(ctx), userID, limit)
	if err != nil {
		return nil, Classify(ctx, log, "failed to get reservation history", err)
	}

	return history, nil
}

func (s *ReservationService) Stats(
	ctx context.Context,
	userID uuid.UUID,
) (*repositories.HistoryStats, error) {
	log := s.log.TraceFromContext(ctx).Function("Stats")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stats, err := s.repos.History.GetUserStats(ctx, s.db.SQLWithContext(ctx), userID)
	if err != nil {
		return nil, Classify(ctx, log, "failed to get reservation stats", err)
	}

	return stats, nil
}

// ExpireStale cancels active, unconfirmed reservations past their expiration
// time and releases their spaces. A reservation that fails to expire is
// logged and retried on the next sweep.
func (s *ReservationService) ExpireStale(ctx context.Context) (int, error) {
	log := s.log.TraceFromContext(ctx).Function("ExpireStale")

	listCtx, cancel := context.WithTimeout(ctx, s.timeout)
	expired, err := s.repos.Reservation.GetExpiredUnconfirmed(
		listCtx,
		s.db.SQLWithContext(listCtx),
		s.now(),
		expirySweepBatch,
	)
	cancel()
	if err != nil {
		return 0, Classify(listCtx, log, "failed to list expired reservations", err)
	}

	count := 0
	for _, reservation := range expired {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		_, err := s.cancel(opCtx, log, reservation.ID, models.CancelReasonExpired)
		cancel()

		switch {
		case err == nil:
			count++
		case errors.Is(err, ErrInvalidState):
			log.Debug("reservation changed before expiry", "reservationID", reservation.ID)
		default:
			log.Warn("failed to expire reservation", "reservationID", reservation.ID, "error", err)
		}

		if ctx.Err() != nil {
			break
		}
	}

	if count > 0 {
		log.Info("Expired stale reservations", "count", count, "candidates", len(expired))
	}

	return count, nil
}

func (s *ReservationService) cancel(
	ctx context.Context,
	log logger.Logger,
	reservationID uuid.UUID,
	reason models.CancelReason,
) (*models.Reservation, error) {
	var reservation *models.Reservation
	var spot *models.ParkingSpot

	err := s.transactor.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		reservation, err = s.lockActive(ctx, tx, log, reservationID)
		if err != nil {
			return err
		}

		now := s.now()
		if reason == models.CancelReasonExpired &&
			(reservation.IsConfirmed || !reservation.IsExpired(now)) {
			return log.ErrorWithType(ErrInvalidState, "reservation is not expired",
				"reservationID", reservationID)
		}

		spot, err = s.release(ctx, tx, log, reservation, map[string]any{
			models.ReservationColumnIsActive:     false,
			models.ReservationColumnCancelledAt:  now,
			models.ReservationColumnCancelReason: reason,
		})
		if err != nil {
			return err
		}

		reservation.CancelledAt = &now
		reservation.CancelReason = &reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Reservation cancelled", "reservationID", reservationID, "reason", reason)
	s.committed(ctx, *spot, nil)

	return reservation, nil
}

// lockActive loads the reservation under a row lock and requires it to be
// active.
func (s *ReservationService) lockActive(
	ctx context.Context,
	tx *gorm.DB,
	log logger.Logger,
	reservationID uuid.UUID,
) (*models.Reservation, error) {
	reservation, err := s.repos.Reservation.GetByIDForUpdate(ctx, tx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, log.ErrorWithType(ErrNotFound, "reservation not found",
				"reservationID", reservationID)
		}
		return nil, err
	}

	if !reservation.IsActive {
		return nil, log.ErrorWithType(ErrInvalidState, "reservation is not active",
			"reservationID", reservationID, "state", reservation.State())
	}

	return reservation, nil
}

// release applies the terminal transition with a compare-and-set on
// is_active and gives the space back. Losing the compare-and-set means
// another request already ended the reservation.
func (s *ReservationService) release(
	ctx context.Context,
	tx *gorm.DB,
	log logger.Logger,
	reservation *models.Reservation,
	updates map[string]any,
) (*models.ParkingSpot, error) {
	updated, err := s.repos.Reservation.UpdateIfActive(ctx, tx, reservation.ID, updates)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, log.ErrorWithType(ErrInvalidState, "reservation is no longer active",
			"reservationID", reservation.ID)
	}

	spot, err := s.repos.ParkingSpot.AdjustOccupied(ctx, tx, reservation.ParkingSpotID, -1)
	if err != nil {
		if errors.Is(err, repositories.ErrOccupancyOutOfRange) {
			return nil, log.ErrorWithType(ErrInconsistentState,
				"occupancy already at zero while releasing reservation",
				"reservationID", reservation.ID, "spotID", reservation.ParkingSpotID)
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, log.ErrorWithType(ErrInconsistentState,
				"parking spot missing while releasing reservation",
				"reservationID", reservation.ID, "spotID", reservation.ParkingSpotID)
		}
		return nil, err
	}

	reservation.IsActive = false
	if completed, ok := updates[models.ReservationColumnIsCompleted].(bool); ok {
		reservation.IsCompleted = completed
	}

	return spot, nil
}

var reservationErrors = []error{
	ErrNotFound,
	ErrInvalidState,
	ErrConflict,
	ErrCapacityExceeded,
	ErrTimeout,
	ErrTransport,
	ErrInconsistentState,
}

// failure passes typed reservation errors through and classifies anything
// else coming out of the storage layer.
func failure(ctx context.Context, log logger.Logger, msg string, err error) error {
	for _, typed := range reservationErrors {
		if errors.Is(err, typed) {
			return err
		}
	}
	return Classify(ctx, log, msg, err)
}

// Classify maps a storage failure to ErrTimeout when the operation ran out of
// time and ErrTransport otherwise, keeping the cause in the chain.
func Classify(ctx context.Context, log logger.Logger, msg string, err error) error {
	kind := ErrTransport
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = ErrTimeout
	}

	log.Er(msg, err, "kind", kind)
	return fmt.Errorf("%w: %s: %w", kind, msg, err)
}
