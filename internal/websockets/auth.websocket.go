package websockets

import (
	"context"
	"errors"
	"time"

	"findmyspot/internal/repositories"

	"gorm.io/gorm"
)

const (
	AUTH_HANDSHAKE_TIMEOUT = 10 * time.Second
	AUTH_VALIDATE_TIMEOUT  = 30 * time.Second
)

// startAuthTimeout disconnects the client if it has not authenticated within
// AUTH_HANDSHAKE_TIMEOUT.
func (c *Client) startAuthTimeout() *time.Timer {
	log := c.Manager.log.Function("startAuthTimeout")

	return time.AfterFunc(AUTH_HANDSHAKE_TIMEOUT, func() {
		if c.Status() != STATUS_UNAUTHENTICATED {
			return
		}

		log.Warn("Client failed to authenticate within timeout, disconnecting",
			"clientID", c.ID,
			"timeout", AUTH_HANDSHAKE_TIMEOUT)

		c.sendAuthFailure("authentication_timeout", "Authentication timeout")
	})
}

// handleAuthResponse verifies the ID token from the client and binds the
// connection to its user.
func (c *Client) handleAuthResponse(message Message) {
	log := c.Manager.log.Function("handleAuthResponse")

	if c.Status() != STATUS_UNAUTHENTICATED {
		log.Warn("Auth response from already authenticated client", "clientID", c.ID)
		return
	}

	token, ok := message.Data["token"].(string)
	if !ok || token == "" {
		log.Warn("Invalid token in auth response", "clientID", c.ID)
		c.sendAuthFailure("authentication_failed", "Invalid token format")
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, AUTH_VALIDATE_TIMEOUT)
	defer cancel()

	tokenInfo, err := c.Manager.identity.ValidateIDToken(ctx, token)
	if err != nil {
		log.Info("WebSocket token validation failed", "clientID", c.ID, "error", err)
		c.sendAuthFailure("authentication_failed", "Authentication failed")
		return
	}

	tx := c.Manager.db.SQLWithContext(ctx)
	user, err := c.Manager.userRepo.GetByOIDCUserID(ctx, tx, tokenInfo.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = c.Manager.userRepo.FindOrCreateOIDCUser(
			ctx,
			tx,
			repositories.NewIdentityClaims(tokenInfo),
			time.Now(),
		)
	}
	if err != nil {
		log.Er("WebSocket user lookup failed", err, "clientID", c.ID, "oidcUserID", tokenInfo.UserID)
		c.sendAuthFailure("authentication_failed", "User not found")
		return
	}

	c.mu.Lock()
	if c.status != STATUS_UNAUTHENTICATED {
		c.mu.Unlock()
		return
	}
	c.status = STATUS_AUTHENTICATED
	c.userID = user.ID
	c.mu.Unlock()

	log.Info("WebSocket client authenticated", "clientID", c.ID, "userID", user.ID)

	authSuccess := newMessage(MESSAGE_TYPE_AUTH_SUCCESS, SYSTEM_CHANNEL, "authenticated", map[string]any{
		"userId": user.ID.String(),
	})
	authSuccess.UserID = user.ID.String()

	c.enqueue(authSuccess)
}

// sendAuthFailure queues the failure; writePump closes the connection once
// it has been written.
func (c *Client) sendAuthFailure(action, reason string) {
	log := c.Manager.log.Function("sendAuthFailure")

	log.Info("Auth failure sent, closing connection", "clientID", c.ID, "reason", reason)

	c.enqueue(newMessage(MESSAGE_TYPE_AUTH_FAILURE, SYSTEM_CHANNEL, action, map[string]any{
		"reason": reason,
	}))
}

func (c *Client) sendAuthRequest() error {
	log := c.Manager.log.Function("sendAuthRequest")

	authRequest := newMessage(MESSAGE_TYPE_AUTH_REQUEST, SYSTEM_CHANNEL, "authenticate", nil)

	if err := c.Connection.WriteJSON(authRequest); err != nil {
		return log.Err("failed to send auth request", err, "clientID", c.ID)
	}

	log.Info("Auth request sent to client", "clientID", c.ID)
	return nil
}

func (c *Client) handleUnauthenticatedMessage(message Message) {
	log := c.Manager.log.Function("handleUnauthenticatedMessage")

	log.Warn(
		"Blocking message from unauthenticated client",
		"clientID",
		c.ID,
		"messageType",
		message.Type,
	)

	c.enqueue(newMessage(MESSAGE_TYPE_ERROR, SYSTEM_CHANNEL, "authentication_required", map[string]any{
		"reason": "Authentication required",
	}))
}
