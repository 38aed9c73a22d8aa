package repositories

import (
	"errors"

	"findmyspot/internal/database"
)

// ErrOccupancyOutOfRange is returned when an occupancy adjustment would leave
// a basement's occupied count outside [0, total].
var ErrOccupancyOutOfRange = errors.New("occupancy out of range")

type Repository struct {
	User        UserRepository
	ParkingSpot ParkingSpotRepository
	Reservation ReservationRepository
	History     ReservationHistoryRepository
}

func New(db database.DB) Repository {
	return Repository{
		User:        NewUserRepository(db.Cache.User),
		ParkingSpot: NewParkingSpotRepository(db.Cache.General),
		Reservation: NewReservationRepository(),
		History:     NewReservationHistoryRepository(db.Cache.User),
	}
}
