package models

import (
	"time"

	"github.com/google/uuid"
)

type ReservationState string

const (
	ReservationStateActiveUnconfirmed ReservationState = "ACTIVE_UNCONFIRMED"
	ReservationStateActiveConfirmed   ReservationState = "ACTIVE_CONFIRMED"
	ReservationStateCancelled         ReservationState = "CANCELLED"
	ReservationStateCompleted         ReservationState = "COMPLETED"
)

type CancelReason string

const (
	CancelReasonUser    CancelReason = "user"
	CancelReasonExpired CancelReason = "expired"
)

// Reservation is a time-boxed hold on one space of a basement. Rows are never
// deleted; leaving the active state clears IsActive instead.
type Reservation struct {
	BaseUUIDModel
	UserID         uuid.UUID     `gorm:"type:uuid;not null;index:idx_reservations_user_id"                json:"userId"`
	User           *User         `gorm:"foreignKey:UserID"                                               json:"-"`
	ParkingSpotID  uuid.UUID     `gorm:"type:uuid;not null;index"                                        json:"parkingSpotId"`
	ParkingSpot    *ParkingSpot  `gorm:"foreignKey:ParkingSpotID"                                        json:"-"`
	BasementNumber int           `gorm:"type:int;not null"                                               json:"basementNumber"`
	StartTime      time.Time     `gorm:"type:timestamptz;not null"                                       json:"startTime"`
	ExpirationTime time.Time     `gorm:"type:timestamptz;not null;index:idx_reservations_expiration"     json:"expirationTime"`
	IsActive       bool          `gorm:"type:bool;not null;default:true"                                 json:"isActive"`
	IsConfirmed    bool          `gorm:"type:bool;not null;default:false"                                json:"isConfirmed"`
	IsCompleted    bool          `gorm:"type:bool;not null;default:false"                                json:"isCompleted"`
	CancelledAt    *time.Time    `gorm:"type:timestamptz"                                                json:"cancelledAt,omitempty"`
	CancelReason   *CancelReason `gorm:"type:text"                                                       json:"cancelReason,omitempty"`
}

// Column names used for partial updates.
const (
	ReservationColumnIsActive     = "is_active"
	ReservationColumnIsConfirmed  = "is_confirmed"
	ReservationColumnIsCompleted  = "is_completed"
	ReservationColumnCancelledAt  = "cancelled_at"
	ReservationColumnCancelReason = "cancel_reason"
)

func (r Reservation) State() ReservationState {
	switch {
	case r.IsActive && r.IsConfirmed:
		return ReservationStateActiveConfirmed
	case r.IsActive:
		return ReservationStateActiveUnconfirmed
	case r.IsCompleted:
		return ReservationStateCompleted
	default:
		return ReservationStateCancelled
	}
}

func (r Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpirationTime)
}

func (r Reservation) RemainingSeconds(now time.Time) int64 {
	remaining := r.ExpirationTime.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

func (r Reservation) RemainingMinutes(now time.Time) int64 {
	return r.RemainingSeconds(now) / 60
}
