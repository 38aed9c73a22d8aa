package controllers

import (
	"findmyspot/config"
	"findmyspot/internal/database"
	"findmyspot/internal/repositories"
	"findmyspot/internal/services"

	adminController "findmyspot/internal/controllers/admin"
	authController "findmyspot/internal/controllers/auth"
	reservationController "findmyspot/internal/controllers/reservations"
	spotController "findmyspot/internal/controllers/spots"
	userController "findmyspot/internal/controllers/users"
)

type Controllers struct {
	User        userController.UserControllerInterface
	Auth        authController.AuthControllerInterface
	Spot        spotController.SpotControllerInterface
	Reservation reservationController.ReservationControllerInterface
	Admin       adminController.AdminControllerInterface
}

func New(
	services services.Service,
	repos repositories.Repository,
	config config.Config,
	db database.DB,
) Controllers {
	return Controllers{
		User:        userController.New(services.Reservation, config),
		Auth:        authController.New(services.Identity, repos.User, services.Transaction),
		Spot:        spotController.New(repos.ParkingSpot, db, config),
		Reservation: reservationController.New(services.Reservation),
		Admin:       adminController.New(services.Scheduler),
	}
}
