package authController

import (
	"context"
	"strings"
	"time"

	"findmyspot/internal/models"
	"findmyspot/internal/repositories"
	"findmyspot/internal/services"
	"findmyspot/internal/types"
	"findmyspot/pkg/logger"

	"gorm.io/gorm"
)

// TokenVerifier validates ID tokens issued by the identity provider.
type TokenVerifier interface {
	IsConfigured() bool
	GetConfig() services.IdentityConfig
	ValidateIDToken(ctx context.Context, idToken string) (*types.TokenInfo, error)
}

// AuthController handles authentication business logic
type AuthController struct {
	identity   TokenVerifier
	userRepo   repositories.UserRepository
	transactor services.Transactor
	now        func() time.Time
	log        logger.Logger
}

type AuthControllerInterface interface {
	GetAuthConfig() *AuthConfigResponse
	CreateSession(ctx context.Context, idToken string) (*SessionResponse, error)
}

type AuthConfigResponse struct {
	Configured bool   `json:"configured"`
	Issuer     string `json:"issuer,omitempty"`
	ClientID   string `json:"clientId,omitempty"`
	Message    string `json:"message,omitempty"`
}

type SessionResponse struct {
	User models.UserProfile `json:"user"`
}

func New(
	identity TokenVerifier,
	userRepo repositories.UserRepository,
	transactor services.Transactor,
) AuthControllerInterface {
	return &AuthController{
		identity:   identity,
		userRepo:   userRepo,
		transactor: transactor,
		now:        time.Now,
		log:        logger.New("authController"),
	}
}

// GetAuthConfig returns what a client needs to start the login flow
func (c *AuthController) GetAuthConfig() *AuthConfigResponse {
	if !c.identity.IsConfigured() {
		return &AuthConfigResponse{
			Configured: false,
			Message:    "Authentication not configured",
		}
	}

	config := c.identity.GetConfig()
	return &AuthConfigResponse{
		Configured: true,
		Issuer:     config.Issuer,
		ClientID:   config.ClientID,
	}
}

// CreateSession verifies the ID token and syncs the user it belongs to,
// creating the account on first login.
func (c *AuthController) CreateSession(ctx context.Context, idToken string) (*SessionResponse, error) {
	log := c.log.TraceFromContext(ctx).Function("CreateSession")

	if strings.TrimSpace(idToken) == "" {
		return nil, log.ErrorWithType(services.ErrUnauthorized, "ID token is required")
	}

	tokenInfo, err := c.identity.ValidateIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = c.transactor.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		user, err = c.userRepo.FindOrCreateOIDCUser(
			ctx,
			tx,
			repositories.NewIdentityClaims(tokenInfo),
			c.now(),
		)
		return err
	})
	if err != nil {
		return nil, log.ErrorWithType(services.ErrTransport, "failed to create user session",
			"oidcUserID", tokenInfo.UserID, "error", err)
	}

	log.Info("Session created", "userID", user.ID)

	return &SessionResponse{User: user.ToProfile()}, nil
}
