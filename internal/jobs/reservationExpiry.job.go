package jobs

import (
	"context"

	"findmyspot/internal/services"
	"findmyspot/pkg/logger"
)

const ReservationExpiryJobName = "reservation-expiry"

// ExpirySweeper cancels unconfirmed reservations past their expiration time.
type ExpirySweeper interface {
	ExpireStale(ctx context.Context) (int, error)
}

type ReservationExpiryJob struct {
	sweeper  ExpirySweeper
	log      logger.Logger
	schedule services.Schedule
}

func NewReservationExpiryJob(
	sweeper ExpirySweeper,
	schedule services.Schedule,
) *ReservationExpiryJob {
	log := logger.New("reservationExpiryJob")
	log.Info("Creating new reservation expiry job", "schedule", schedule)

	return &ReservationExpiryJob{
		sweeper:  sweeper,
		log:      log,
		schedule: schedule,
	}
}

func (j *ReservationExpiryJob) Name() string {
	return ReservationExpiryJobName
}

func (j *ReservationExpiryJob) Execute(ctx context.Context) error {
	log := j.log.TraceFromContext(ctx).Function("Execute")

	expired, err := j.sweeper.ExpireStale(ctx)
	if err != nil {
		return log.Err("reservation expiry sweep failed", err)
	}

	if expired > 0 {
		log.Info("Reservation expiry sweep completed", "expired", expired)
	}

	return nil
}

func (j *ReservationExpiryJob) Schedule() services.Schedule {
	return j.schedule
}
