package jobs

import (
	"findmyspot/config"
	"findmyspot/internal/services"
	"findmyspot/pkg/logger"
)

const Frequent = services.Frequent

// RegisterAllJobs registers all jobs with the scheduler service
func RegisterAllJobs(
	schedulerService *services.SchedulerService,
	config config.Config,
	service services.Service,
) error {
	log := logger.New("jobs").Function("RegisterAllJobs")

	if !config.SchedulerEnabled {
		log.Info("Scheduler disabled, skipping job registration")
		return nil
	}

	if config.ExpirySweepEnabled {
		expiryJob := NewReservationExpiryJob(service.Reservation, Frequent)
		if err := schedulerService.AddJob(expiryJob); err != nil {
			return log.Err("failed to register reservation expiry job", err)
		}
		log.Info("Registered reservation expiry job", "schedule", "every 30s")
	}

	log.Info("Jobs registered", "count", schedulerService.GetJobCount())

	return nil
}
