package seed

import (
	"time"

	"findmyspot/config"
	. "findmyspot/internal/models"
	"findmyspot/pkg/logger"

	"gorm.io/gorm"
)

func stringPtr(s string) *string {
	return &s
}

// Seed adds development users with some completed reservations so profile
// statistics and history have data.
func Seed(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("seed")
	log.Info("Seeding development data")

	users := []User{
		{
			OIDCUserID:  "dev-admin",
			FirstName:   "Admin",
			LastName:    "User",
			DisplayName: "Administrator",
			Email:       stringPtr("admin@example.com"),
			IsAdmin:     true,
			IsActive:    true,
		},
		{
			OIDCUserID:  "dev-driver",
			FirstName:   "Ada",
			LastName:    "Lovelace",
			DisplayName: "Ada Lovelace",
			Email:       stringPtr("ada.lovelace@example.com"),
			IsActive:    true,
		},
	}

	for i := range users {
		user := &users[i]
		var existing User
		if err := db.First(&existing, "oidc_user_id = ?", user.OIDCUserID).Error; err == nil {
			log.Info("User already exists", "oidcUserID", user.OIDCUserID)
			*user = existing
			continue
		}

		log.Info("Seeding user", "oidcUserID", user.OIDCUserID)
		if err := db.Create(user).Error; err != nil {
			return log.Err("failed to create user", err, "oidcUserID", user.OIDCUserID)
		}
	}

	var spot ParkingSpot
	if err := db.Order("basement_number").First(&spot).Error; err != nil {
		return log.Err("failed to load basement for seed history", err)
	}

	return seedHistory(db, config, users[1], spot, log)
}

func seedHistory(
	db *gorm.DB,
	config config.Config,
	user User,
	spot ParkingSpot,
	log logger.Logger,
) error {
	var count int64
	if err := db.Model(&ReservationHistory{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		return log.Err("failed to count history", err)
	}
	if count > 0 {
		log.Info("History already seeded", "userID", user.ID)
		return nil
	}

	now := time.Now().UTC()
	durations := []time.Duration{3 * time.Minute, 42 * time.Minute, 95 * time.Minute}

	return db.Transaction(func(tx *gorm.DB) error {
		for i, duration := range durations {
			start := now.Add(-time.Duration(i+1) * 24 * time.Hour)
			completedAt := start.Add(duration)

			reservation := Reservation{
				UserID:         user.ID,
				ParkingSpotID:  spot.ID,
				BasementNumber: spot.BasementNumber,
				StartTime:      start,
				ExpirationTime: start.Add(config.ReservationDuration()),
				IsConfirmed:    i > 0,
				IsCompleted:    true,
			}
			if err := tx.Create(&reservation).Error; err != nil {
				return log.Err("failed to seed reservation", err)
			}
			// is_active has a database default, so false is written separately
			if err := tx.Model(&reservation).Update("is_active", false).Error; err != nil {
				return log.Err("failed to close seeded reservation", err)
			}

			history := ReservationHistory{
				UserID:         user.ID,
				ReservationID:  reservation.ID,
				BasementNumber: spot.BasementNumber,
				Date:           completedAt,
				WasConfirmed:   reservation.IsConfirmed,
				Duration:       int(duration / time.Minute),
			}
			if err := tx.Create(&history).Error; err != nil {
				return log.Err("failed to seed history", err)
			}
		}

		log.Info("Seeded reservation history", "userID", user.ID, "count", len(durations))
		return nil
	})
}
