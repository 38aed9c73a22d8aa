package initialize

import (
	"findmyspot/config"
	. "findmyspot/internal/models"
	"findmyspot/pkg/logger"

	"gorm.io/gorm"
)

// basements is the campus parking layout every environment starts with.
var basements = []ParkingSpot{
	{BasementNumber: 1, TotalSpaces: 120, Latitude: 4.6281, Longitude: -74.0646},
	{BasementNumber: 2, TotalSpaces: 90, Latitude: 4.6283, Longitude: -74.0649},
	{BasementNumber: 3, TotalSpaces: 60, Latitude: 4.6279, Longitude: -74.0651},
}

func InitializeTables(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("InitializeTables")
	log.Info("Initializing essential production data")

	if err := initializeBasements(db, log); err != nil {
		return log.Err("failed to initialize basements", err)
	}

	log.Info("Table initialization complete")
	return nil
}

// initializeBasements creates missing basements. Existing rows keep their
// occupancy so a re-run never resets live counters.
func initializeBasements(db *gorm.DB, log logger.Logger) error {
	log.Info("Initializing parking basements")

	for _, basement := range basements {
		var existing ParkingSpot
		if err := db.First(&existing, "basement_number = ?", basement.BasementNumber).Error; err == nil {
			log.Debug("Basement already exists", "basement", basement.BasementNumber)
			continue
		}

		log.Info("Initializing basement",
			"basement", basement.BasementNumber,
			"totalSpaces", basement.TotalSpaces)
		if err := db.Create(&basement).Error; err != nil {
			return log.Err(
				"failed to create basement",
				err,
				"basement",
				basement.BasementNumber,
			)
		}
	}

	log.Info("Parking basements initialized", "count", len(basements))
	return nil
}
