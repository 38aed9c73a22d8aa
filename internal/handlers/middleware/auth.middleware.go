package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"findmyspot/internal/models"
	"findmyspot/internal/repositories"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AuthContextKey is used to store auth info in context
type AuthContextKey string

const (
	UserKey      AuthContextKey = "user"
	UserKeyFiber string         = "User" // Fiber context key (string)
)

// RequireAuth validates the bearer ID token and loads the matching user,
// creating it on first sight.
func (m *Middleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		log := m.log.TraceFromContext(ctx).Function("RequireAuth")

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			log.Info("missing authorization header")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			log.Info("invalid authorization header format")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		token := tokenParts[1]
		if token == "" {
			log.Info("empty token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token required",
			})
		}

		tokenInfo, err := m.identity.ValidateIDToken(ctx, token)
		if err != nil {
			log.Info("token validation failed", "error", err.Error())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		tx := m.DB.SQLWithContext(ctx)
		user, err := m.userRepo.GetByOIDCUserID(ctx, tx, tokenInfo.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user, err = m.userRepo.FindOrCreateOIDCUser(
				ctx,
				tx,
				repositories.NewIdentityClaims(tokenInfo),
				time.Now(),
			)
		}
		if err != nil {
			log.Info(
				"user lookup failed",
				"oidcUserID",
				tokenInfo.UserID,
				"error",
				err.Error(),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User not found",
			})
		}

		c.Locals(UserKeyFiber, user)
		c.SetUserContext(context.WithValue(ctx, UserKey, user))

		log.Debug("user authenticated", "oidcUserID", tokenInfo.UserID, "userID", user.ID)
		return c.Next()
	}
}

// GetUser extracts user from Fiber context
func GetUser(c *fiber.Ctx) *models.User {
	user, ok := c.Locals(UserKeyFiber).(*models.User)
	if !ok {
		return nil
	}
	return user
}
