package types

import (
	"time"

	"findmyspot/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Timestamps in views are epoch milliseconds.

type SpotView struct {
	ID                  uuid.UUID         `json:"id"`
	BasementNumber      int               `json:"basementNumber"`
	TotalSpaces         int               `json:"totalSpaces"`
	OccupiedSpaces      int               `json:"occupiedSpaces"`
	AvailableSpaces     int               `json:"availableSpaces"`
	Status              models.SpotStatus `json:"status"`
	OccupancyPercentage float64           `json:"occupancyPercentage"`
	Latitude            float64           `json:"latitude"`
	Longitude           float64           `json:"longitude"`
	Version             int64             `json:"version"`
}

func NewSpotView(spot models.ParkingSpot, threshold decimal.Decimal) SpotView {
	return SpotView{
		ID:                  spot.ID,
		BasementNumber:      spot.BasementNumber,
		TotalSpaces:         spot.TotalSpaces,
		OccupiedSpaces:      spot.OccupiedSpaces,
		AvailableSpaces:     spot.AvailableSpaces(),
		Status:              spot.Status(threshold),
		OccupancyPercentage: spot.OccupancyPercentage().InexactFloat64(),
		Latitude:            spot.Latitude,
		Longitude:           spot.Longitude,
		Version:             spot.Version,
	}
}

func NewSpotViews(spots []*models.ParkingSpot, threshold decimal.Decimal) []SpotView {
	views := make([]SpotView, 0, len(spots))
	for _, spot := range spots {
		views = append(views, NewSpotView(*spot, threshold))
	}
	return views
}

type ReservationView struct {
	ID               uuid.UUID               `json:"id"`
	UserID           uuid.UUID               `json:"userId"`
	ParkingSpotID    uuid.UUID               `json:"parkingSpotId"`
	BasementNumber   int                     `json:"basementNumber"`
	StartTime        int64                   `json:"startTime"`
	ExpirationTime   int64                   `json:"expirationTime"`
	IsActive         bool                    `json:"isActive"`
	IsConfirmed      bool                    `json:"isConfirmed"`
	IsCompleted      bool                    `json:"isCompleted"`
	State            models.ReservationState `json:"state"`
	RemainingSeconds int64                   `json:"remainingSeconds"`
	RemainingMinutes int64                   `json:"remainingMinutes"`
	IsExpired        bool                    `json:"isExpired"`
	CancelledAt      *int64                  `json:"cancelledAt,omitempty"`
	CancelReason     *models.CancelReason    `json:"cancelReason,omitempty"`
}

func NewReservationView(reservation models.Reservation, now time.Time) ReservationView {
	view := ReservationView{
		ID:               reservation.ID,
		UserID:           reservation.UserID,
		ParkingSpotID:    reservation.ParkingSpotID,
		BasementNumber:   reservation.BasementNumber,
		StartTime:        reservation.StartTime.UnixMilli(),
		ExpirationTime:   reservation.ExpirationTime.UnixMilli(),
		IsActive:         reservation.IsActive,
		IsConfirmed:      reservation.IsConfirmed,
		IsCompleted:      reservation.IsCompleted,
		State:            reservation.State(),
		RemainingSeconds: reservation.RemainingSeconds(now),
		RemainingMinutes: reservation.RemainingMinutes(now),
		IsExpired:        reservation.IsExpired(now),
		CancelReason:     reservation.CancelReason,
	}

	if reservation.CancelledAt != nil {
		cancelledAt := reservation.CancelledAt.UnixMilli()
		view.CancelledAt = &cancelledAt
	}

	return view
}

type HistoryView struct {
	ID             uuid.UUID `json:"id"`
	ReservationID  uuid.UUID `json:"reservationId"`
	BasementNumber int       `json:"basementNumber"`
	Date           int64     `json:"date"`
	WasConfirmed   bool      `json:"wasConfirmed"`
	Duration       int       `json:"duration"`
}

func NewHistoryViews(history []*models.ReservationHistory) []HistoryView {
	views := make([]HistoryView, 0, len(history))
	for _, entry := range history {
		views = append(views, HistoryView{
			ID:             entry.ID,
			ReservationID:  entry.ReservationID,
			BasementNumber: entry.BasementNumber,
			Date:           entry.Date.UnixMilli(),
			WasConfirmed:   entry.WasConfirmed,
			Duration:       entry.Duration,
		})
	}
	return views
}

type CreateReservationRequest struct {
	ParkingSpotID  uuid.UUID `json:"parkingSpotId"`
	BasementNumber int       `json:"basementNumber"`
}
