package repositories

import (
	"context"
	"errors"

	"findmyspot/internal/constants"
	"findmyspot/internal/database"
	. "findmyspot/internal/models"
	"findmyspot/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ParkingSpotRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*ParkingSpot, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*ParkingSpot, error)
	AdjustOccupied(
		ctx context.Context,
		tx *gorm.DB,
		id uuid.UUID,
		delta int,
	) (*ParkingSpot, error)
	Create(ctx context.Context, tx *gorm.DB, spot *ParkingSpot) error
	ClearCache(ctx context.Context)
}

type parkingSpotRepository struct {
	cache database.CacheClient
	log   logger.Logger
}

func NewParkingSpotRepository(cache database.CacheClient) ParkingSpotRepository {
	return &parkingSpotRepository{
		cache: cache,
		log:   logger.New("parkingSpotRepository"),
	}
}

func (r *parkingSpotRepository) GetByID(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
) (*ParkingSpot, error) {
	log := r.log.Function("GetByID")

	spot, err := gorm.G[*ParkingSpot](tx).
		Where(ParkingSpot{BaseUUIDModel: BaseUUIDModel{ID: id}}).
		First(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, log.Err("failed to get parking spot", err, "spotID", id)
	}

	return spot, nil
}

func (r *parkingSpotRepository) GetAll(ctx context.Context, tx *gorm.DB) ([]*ParkingSpot, error) {
	log := r.log.Function("GetAll")

	var cached []*ParkingSpot
	found, err := database.NewCacheBuilder(r.cache, constants.ParkingSpotsCacheKey).
		WithContext(ctx).
		Get(&cached)
	if err != nil {
		log.Warn("failed to get parking spots from cache", "error", err)
	}

	if found {
		return cached, nil
	}

	spots, err := gorm.G[*ParkingSpot](tx).Order("basement_number ASC").Find(ctx)
	if err != nil {
		return nil, log.Err("failed to get parking spots", err)
	}

	err = database.NewCacheBuilder(r.cache, constants.ParkingSpotsCacheKey).
		WithContext(ctx).
		WithStruct(spots).
		WithTTL(constants.ParkingSpotsCacheExpiry).
		Set()
	if err != nil {
		log.Warn("failed to set parking spots in cache", "error", err)
	}

	return spots, nil
}

// AdjustOccupied applies delta to the occupied count with a single conditional
// UPDATE so concurrent adjustments on one basement cannot overshoot its bounds.
// The version counter is bumped with every successful change. The cached
// spot list is left alone; callers clear it once the transaction commits.
func (r *parkingSpotRepository) AdjustOccupied(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
	delta int,
) (*ParkingSpot, error) {
	log := r.log.Function("AdjustOccupied")

	result := tx.WithContext(ctx).
		Model(&ParkingSpot{}).
		Where("id = ? AND occupied_spaces + ? BETWEEN 0 AND total_spaces", id, delta).
		Updates(map[string]any{
			"occupied_spaces": gorm.Expr("occupied_spaces + ?", delta),
			"version":         gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return nil, log.Err("failed to adjust occupancy", result.Error, "spotID", id, "delta", delta)
	}

	spot, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if result.RowsAffected == 0 {
		return spot, ErrOccupancyOutOfRange
	}

	return spot, nil
}

func (r *parkingSpotRepository) Create(ctx context.Context, tx *gorm.DB, spot *ParkingSpot) error {
	log := r.log.Function("Create")

	if err := gorm.G[ParkingSpot](tx).Create(ctx, spot); err != nil {
		return log.Err("failed to create parking spot", err, "basement", spot.BasementNumber)
	}

	r.ClearCache(ctx)

	return nil
}

func (r *parkingSpotRepository) ClearCache(ctx context.Context) {
	err := database.NewCacheBuilder(r.cache, constants.ParkingSpotsCacheKey).
		WithContext(ctx).
		Delete()
	if err != nil {
		r.log.Warn("failed to clear parking spots cache", "error", err)
	}
}
