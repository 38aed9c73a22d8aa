package services

import (
	"findmyspot/config"
	"findmyspot/internal/database"
	"findmyspot/internal/events"
	"findmyspot/internal/repositories"
)

type Service struct {
	Identity      *IdentityService
	Transaction   *TransactionService
	Scheduler     *SchedulerService
	Locker        Locker
	OccupancyFeed *OccupancyFeed
	Reservation   *ReservationService
}

func New(db database.DB, config config.Config, eventBus *events.EventBus) (Service, error) {
	transactionService := NewTransactionService(db)
	repos := repositories.New(db)

	var locker Locker = NewLocalLocker()
	if db.Cache.Lock != nil {
		locker = NewValkeyLocker(db.Cache.Lock, config.OperationTimeout())
	}

	occupancyFeed := NewOccupancyFeed(db, repos.ParkingSpot, eventBus)
	reservationService := NewReservationService(
		db,
		repos,
		transactionService,
		locker,
		occupancyFeed,
		config,
	)

	return Service{
		Identity:      NewIdentityService(config),
		Transaction:   transactionService,
		Scheduler:     NewSchedulerService(),
		Locker:        locker,
		OccupancyFeed: occupancyFeed,
		Reservation:   reservationService,
	}, nil
}
