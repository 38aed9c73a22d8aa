package database

import (
	"findmyspot/internal/models"
)

// Models lists every table managed by GORM, in dependency order. Partial
// indexes and cross-column checks live in cmd/migration/migrations.
func Models() []any {
	return []any{
		&models.User{},
		&models.ParkingSpot{},
		&models.Reservation{},
		&models.ReservationHistory{},
	}
}
