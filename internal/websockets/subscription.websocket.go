package websockets

import (
	"context"
	"errors"

	"findmyspot/internal/models"
	"findmyspot/internal/services"
	"findmyspot/internal/types"

	"github.com/google/uuid"
)

// spotIDFromMessage reads data.spotId; a missing or empty id selects every
// spot.
func spotIDFromMessage(message Message) (uuid.UUID, error) {
	raw, ok := message.Data["spotId"].(string)
	if !ok || raw == "" || raw == "all" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

func (c *Client) handleSubscribe(message Message) {
	log := c.Manager.log.Function("handleSubscribe")

	spotID, err := spotIDFromMessage(message)
	if err != nil {
		log.Warn("Invalid spot id in subscribe", "clientID", c.ID, "error", err)
		c.sendError("invalid spotId")
		return
	}

	c.mu.Lock()
	if _, exists := c.subscriptions[spotID]; exists {
		c.mu.Unlock()
		c.enqueue(subscriptionMessage(MESSAGE_TYPE_SUBSCRIBED, spotID))
		return
	}
	subCtx, cancel := context.WithCancel(c.ctx)
	c.subscriptions[spotID] = cancel
	c.mu.Unlock()

	updates, err := c.Manager.feed.Subscribe(subCtx, spotID)
	if err != nil {
		c.mu.Lock()
		delete(c.subscriptions, spotID)
		c.mu.Unlock()
		cancel()

		log.Warn("Spot subscription failed", "clientID", c.ID, "spotID", spotID, "error", err)
		if errors.Is(err, services.ErrNotFound) {
			c.sendError("parking spot not found")
		} else {
			c.sendError("subscription unavailable")
		}
		return
	}

	log.Info("Client subscribed to spot updates", "clientID", c.ID, "spotID", spotID)
	c.enqueue(subscriptionMessage(MESSAGE_TYPE_SUBSCRIBED, spotID))

	go c.forwardSpotUpdates(subCtx, spotID, updates)
}

func (c *Client) forwardSpotUpdates(
	ctx context.Context,
	spotID uuid.UUID,
	updates <-chan models.ParkingSpot,
) {
	for spot := range updates {
		view := types.NewSpotView(spot, c.Manager.threshold)
		message := newMessage(MESSAGE_TYPE_SPOT_UPDATE, SPOTS_CHANNEL, "update", map[string]any{
			"subscription": subscriptionKey(spotID),
			"spot":         view,
		})
		if !c.enqueue(message) || ctx.Err() != nil {
			return
		}
	}
}

func (c *Client) handleUnsubscribe(message Message) {
	log := c.Manager.log.Function("handleUnsubscribe")

	spotID, err := spotIDFromMessage(message)
	if err != nil {
		c.sendError("invalid spotId")
		return
	}

	c.mu.Lock()
	cancel, exists := c.subscriptions[spotID]
	delete(c.subscriptions, spotID)
	c.mu.Unlock()

	if exists {
		cancel()
		log.Info("Client unsubscribed from spot updates", "clientID", c.ID, "spotID", spotID)
	}

	c.enqueue(subscriptionMessage(MESSAGE_TYPE_UNSUBSCRIBED, spotID))
}

// SubscriptionCount returns the number of live spot subscriptions.
func (c *Client) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions)
}

func subscriptionKey(spotID uuid.UUID) string {
	if spotID == uuid.Nil {
		return "all"
	}
	return spotID.String()
}

func subscriptionMessage(messageType string, spotID uuid.UUID) Message {
	return newMessage(messageType, SPOTS_CHANNEL, messageType, map[string]any{
		"spotId": subscriptionKey(spotID),
	})
}
