package app

import (
	"context"

	"findmyspot/config"
	"findmyspot/internal/controllers"
	"findmyspot/internal/database"
	"findmyspot/internal/events"
	"findmyspot/internal/handlers/middleware"
	"findmyspot/internal/jobs"
	"findmyspot/internal/repositories"
	"findmyspot/internal/services"
	"findmyspot/internal/websockets"
	"findmyspot/pkg/logger"
)

type App struct {
	Database   database.DB
	Middleware middleware.Middleware
	Websocket  *websockets.Manager
	EventBus   *events.EventBus
	Config     config.Config

	Services    services.Service
	Repos       repositories.Repository
	Controllers controllers.Controllers
}

func New() (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.New()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	eventBus := events.New(db.Cache.Events)

	service, err := services.New(db, config, eventBus)
	if err != nil {
		return &App{}, log.Err("failed to create services", err)
	}

	repos := repositories.New(db)

	if err := jobs.RegisterAllJobs(service.Scheduler, config, service); err != nil {
		return &App{}, log.Err("failed to register jobs", err)
	}

	websocket, err := websockets.New(db, config, service.Identity, repos.User, service.OccupancyFeed)
	if err != nil {
		return &App{}, log.Err("failed to create websocket manager", err)
	}

	app := &App{
		Database:    db,
		Config:      config,
		Middleware:  middleware.New(db, config, repos, service.Identity),
		Websocket:   websocket,
		EventBus:    eventBus,
		Services:    service,
		Repos:       repos,
		Controllers: controllers.New(service, repos, config, db),
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")
	if a.Database.SQL == nil {
		return log.ErrMsg("database is nil")
	}

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	nilChecks := map[string]any{
		"websocket":             a.Websocket,
		"eventBus":              a.EventBus,
		"identityService":       a.Services.Identity,
		"transactionService":    a.Services.Transaction,
		"schedulerService":      a.Services.Scheduler,
		"reservationService":    a.Services.Reservation,
		"occupancyFeed":         a.Services.OccupancyFeed,
		"locker":                a.Services.Locker,
		"userRepo":              a.Repos.User,
		"parkingSpotRepo":       a.Repos.ParkingSpot,
		"reservationRepo":       a.Repos.Reservation,
		"historyRepo":           a.Repos.History,
		"authController":        a.Controllers.Auth,
		"userController":        a.Controllers.User,
		"spotController":        a.Controllers.Spot,
		"reservationController": a.Controllers.Reservation,
		"adminController":       a.Controllers.Admin,
	}

	for name, check := range nilChecks {
		if isNil(check) {
			return log.Error("nil check failed", "component", name)
		}
	}

	return nil
}

func isNil(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case *websockets.Manager:
		return v == nil
	case *events.EventBus:
		return v == nil
	case *services.IdentityService:
		return v == nil
	case *services.TransactionService:
		return v == nil
	case *services.SchedulerService:
		return v == nil
	case *services.ReservationService:
		return v == nil
	case *services.OccupancyFeed:
		return v == nil
	}
	return false
}

// Close stops background work before releasing the database connections.
func (a *App) Close() (err error) {
	if a.Websocket != nil {
		if closeErr := a.Websocket.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if a.Services.Scheduler != nil {
		if closeErr := a.Services.Scheduler.Stop(context.Background()); closeErr != nil {
			err = closeErr
		}
	}

	if a.EventBus != nil {
		if closeErr := a.EventBus.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
