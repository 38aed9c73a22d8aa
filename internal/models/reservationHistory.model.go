package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservationHistory summarises a completed reservation. Exactly one row exists
// per completed reservation and it is never modified.
type ReservationHistory struct {
	BaseUUIDModel
	UserID         uuid.UUID `gorm:"type:uuid;not null;index:idx_reservation_histories_user_date,priority:1" json:"userId"`
	ReservationID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"                                         json:"reservationId"`
	BasementNumber int       `gorm:"type:int;not null"                                                      json:"basementNumber"`
	Date           time.Time `gorm:"type:timestamptz;not null;index:idx_reservation_histories_user_date,priority:2,sort:desc" json:"date"`
	WasConfirmed   bool      `gorm:"type:bool;not null"                                                     json:"wasConfirmed"`
	Duration       int       `gorm:"type:int;not null;check:duration >= 0"                                  json:"duration"`
}

// DurationMinutes returns whole minutes elapsed from start to end, floored and
// never negative.
func DurationMinutes(start, end time.Time) int {
	elapsed := end.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / time.Minute)
}
