package middleware

import (
	"context"

	"findmyspot/config"
	"findmyspot/internal/database"
	"findmyspot/internal/repositories"
	"findmyspot/internal/types"
	"findmyspot/pkg/logger"
)

// TokenVerifier validates bearer ID tokens.
type TokenVerifier interface {
	ValidateIDToken(ctx context.Context, idToken string) (*types.TokenInfo, error)
}

type Middleware struct {
	DB       database.DB
	userRepo repositories.UserRepository
	identity TokenVerifier
	Config   config.Config
	log      logger.Logger
}

func New(
	db database.DB,
	config config.Config,
	repos repositories.Repository,
	identity TokenVerifier,
) Middleware {
	log := logger.New("middleware")

	return Middleware{
		DB:       db,
		userRepo: repos.User,
		identity: identity,
		Config:   config,
		log:      log,
	}
}
