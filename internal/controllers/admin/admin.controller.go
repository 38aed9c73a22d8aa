package adminController

import (
	"context"
	"slices"
	"time"

	"findmyspot/pkg/logger"
)

type JobTrigger interface {
	JobNames() []string
	IsRunning() bool
	GetNextRunTime() *time.Time
	TriggerJobByName(ctx context.Context, jobName string) error
}

type AdminControllerInterface interface {
	ListJobs(ctx context.Context) *JobsResponse
	TriggerJob(ctx context.Context, name string) (*TriggerJobResponse, error)
}

type AdminController struct {
	scheduler JobTrigger
	log       logger.Logger
}

type JobsResponse struct {
	Jobs    []string   `json:"jobs"`
	Running bool       `json:"running"`
	NextRun *time.Time `json:"nextRun,omitempty"`
}

type TriggerJobResponse struct {
	Job     string `json:"job"`
	Message string `json:"message"`
}

func New(scheduler JobTrigger) AdminControllerInterface {
	return &AdminController{
		scheduler: scheduler,
		log:       logger.New("adminController"),
	}
}

func (c *AdminController) ListJobs(ctx context.Context) *JobsResponse {
	names := c.scheduler.JobNames()
	slices.Sort(names)
	return &JobsResponse{
		Jobs:    names,
		Running: c.scheduler.IsRunning(),
		NextRun: c.scheduler.GetNextRunTime(),
	}
}

// TriggerJob starts a registered job in the background and returns
// immediately; the job's outcome is only logged.
func (c *AdminController) TriggerJob(ctx context.Context, name string) (*TriggerJobResponse, error) {
	log := c.log.TraceFromContext(ctx).Function("TriggerJob")

	if err := c.scheduler.TriggerJobByName(ctx, name); err != nil {
		return nil, err
	}

	log.Info("Job triggered by admin", "job", name)

	return &TriggerJobResponse{
		Job:     name,
		Message: "Job triggered",
	}, nil
}
