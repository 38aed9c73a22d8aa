package repositories

import (
	"context"

	"findmyspot/internal/constants"
	"findmyspot/internal/database"
	. "findmyspot/internal/models"
	"findmyspot/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HistoryStats struct {
	TotalReservations     int64 `json:"totalReservations"`
	ConfirmedReservations int64 `json:"confirmedReservations"`
	TotalMinutes          int64 `json:"totalMinutes"`
}

type ReservationHistoryRepository interface {
	Create(ctx context.Context, tx *gorm.DB, history *ReservationHistory) error
	GetUserHistory(
		ctx context.Context,
		tx *gorm.DB,
		userID uuid.UUID,
		limit int,
	) ([]*ReservationHistory, error)
	GetUserStats(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*HistoryStats, error)
	ClearUserHistoryCache(ctx context.Context, userID uuid.UUID)
}

type reservationHistoryRepository struct {
	cache database.CacheClient
	log   logger.Logger
}

func NewReservationHistoryRepository(cache database.CacheClient) ReservationHistoryRepository {
	return &reservationHistoryRepository{
		cache: cache,
		log:   logger.New("reservationHistoryRepository"),
	}
}

func (r *reservationHistoryRepository) Create(
	ctx context.Context,
	tx *gorm.DB,
	history *ReservationHistory,
) error {
	log := r.log.Function("Create")

	if err := gorm.G[ReservationHistory](tx).Create(ctx, history); err != nil {
		return log.Err(
			"failed to create reservation history",
			err,
			"userID",
			history.UserID,
			"reservationID",
			history.ReservationID,
		)
	}

	return nil
}

func (r *reservationHistoryRepository) GetUserHistory(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
	limit int,
) ([]*ReservationHistory, error) {
	log := r.log.Function("GetUserHistory")

	var cached []*ReservationHistory
	found, err := database.NewCacheBuilder(r.cache, userID).
		WithContext(ctx).
		WithHash(constants.ReservationHistoryCachePrefix).
		Get(&cached)
	if err != nil {
		log.Warn("failed to get reservation history from cache", "userID", userID, "error", err)
	}

	if found {
		return truncateHistory(cached, limit), nil
	}

	// The cache always holds the newest MaxHistoryEntries rows so every limit
	// can be served from one key.
	history, err := gorm.G[*ReservationHistory](tx).
		Where(ReservationHistory{UserID: userID}).
		Order("date DESC").
		Limit(constants.MaxHistoryEntries).
		Find(ctx)
	if err != nil {
		return nil, log.Err("failed to get reservation history", err, "userID", userID)
	}

	err = database.NewCacheBuilder(r.cache, userID).
		WithContext(ctx).
		WithHash(constants.ReservationHistoryCachePrefix).
		WithStruct(history).
		WithTTL(constants.ReservationHistoryCacheExpiry).
		Set()
	if err != nil {
		log.Warn("failed to set reservation history in cache", "userID", userID, "error", err)
	}

	log.Info(
		"Reservation history retrieved from database and cached",
		"userID",
		userID,
		"count",
		len(history),
	)

	return truncateHistory(history, limit), nil
}

func truncateHistory(history []*ReservationHistory, limit int) []*ReservationHistory {
	if limit > 0 && len(history) > limit {
		return history[:limit]
	}
	return history
}

func (r *reservationHistoryRepository) GetUserStats(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
) (*HistoryStats, error) {
	log := r.log.Function("GetUserStats")

	var stats HistoryStats
	err := tx.WithContext(ctx).
		Model(&ReservationHistory{}).
		Select(
			"COUNT(*) AS total_reservations, " +
				"COUNT(*) FILTER (WHERE was_confirmed) AS confirmed_reservations, " +
				"COALESCE(SUM(duration), 0) AS total_minutes",
		).
		Where("user_id = ?", userID).
		Scan(&stats).Error
	if err != nil {
		return nil, log.Err("failed to get reservation stats", err, "userID", userID)
	}

	return &stats, nil
}

func (r *reservationHistoryRepository) ClearUserHistoryCache(ctx context.Context, userID uuid.UUID) {
	err := database.NewCacheBuilder(r.cache, userID).
		WithContext(ctx).
		WithHash(constants.ReservationHistoryCachePrefix).
		Delete()
	if err != nil {
		r.log.Warn("failed to clear reservation history cache", "userID", userID, "error", err)
	}
}
