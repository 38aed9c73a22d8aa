package spotController

import (
	"context"
	"errors"

	"findmyspot/config"
	"findmyspot/internal/database"
	"findmyspot/internal/repositories"
	"findmyspot/internal/services"
	"findmyspot/internal/types"
	"findmyspot/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SpotControllerInterface interface {
	List(ctx context.Context) ([]types.SpotView, error)
	Get(ctx context.Context, spotID uuid.UUID) (*types.SpotView, error)
}

type SpotController struct {
	spotRepo  repositories.ParkingSpotRepository
	db        database.DB
	threshold decimal.Decimal
	log       logger.Logger
}

func New(
	spotRepo repositories.ParkingSpotRepository,
	db database.DB,
	config config.Config,
) SpotControllerInterface {
	return &SpotController{
		spotRepo:  spotRepo,
		db:        db,
		threshold: config.Threshold(),
		log:       logger.New("spotController"),
	}
}

// List returns every basement ordered by basement number with its derived
// availability status.
func (c *SpotController) List(ctx context.Context) ([]types.SpotView, error) {
	log := c.log.TraceFromContext(ctx).Function("List")

	spots, err := c.spotRepo.GetAll(ctx, c.db.SQLWithContext(ctx))
	if err != nil {
		return nil, services.Classify(ctx, log, "failed to list parking spots", err)
	}

	return types.NewSpotViews(spots, c.threshold), nil
}

func (c *SpotController) Get(ctx context.Context, spotID uuid.UUID) (*types.SpotView, error) {
	log := c.log.TraceFromContext(ctx).Function("Get")

	spot, err := c.spotRepo.GetByID(ctx, c.db.SQLWithContext(ctx), spotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, log.ErrorWithType(services.ErrNotFound, "parking spot not found",
				"spotID", spotID)
		}
		return nil, services.Classify(ctx, log, "failed to get parking spot", err)
	}

	view := types.NewSpotView(*spot, c.threshold)
	return &view, nil
}
