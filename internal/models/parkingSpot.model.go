package models

import (
	"github.com/shopspring/decimal"
)

type SpotStatus string

const (
	SpotStatusAvailable SpotStatus = "AVAILABLE"
	SpotStatusFewSpots  SpotStatus = "FEW_SPOTS"
	SpotStatusFull      SpotStatus = "FULL"
)

// DefaultFewSpotsThreshold is the share of free spaces at or below which a
// basement reports FEW_SPOTS.
var DefaultFewSpotsThreshold = decimal.RequireFromString("0.20")

// ParkingSpot is one basement's capacity counter. OccupiedSpaces stays within
// [0, TotalSpaces] and Version increases on every occupancy change.
type ParkingSpot struct {
	BaseUUIDModel
	BasementNumber int     `gorm:"type:int;not null;uniqueIndex"                           json:"basementNumber"`
	TotalSpaces    int     `gorm:"type:int;not null;check:total_spaces >= 0"               json:"totalSpaces"`
	OccupiedSpaces int     `gorm:"type:int;not null;default:0;check:occupied_spaces >= 0"  json:"occupiedSpaces"`
	Latitude       float64 `gorm:"type:double precision"                                   json:"latitude"`
	Longitude      float64 `gorm:"type:double precision"                                   json:"longitude"`
	Version        int64   `gorm:"type:bigint;not null;default:0"                          json:"version"`
}

func (p ParkingSpot) AvailableSpaces() int {
	return p.TotalSpaces - p.OccupiedSpaces
}

// Status classifies availability using an exact decimal comparison of free
// spaces against threshold * total.
func (p ParkingSpot) Status(threshold decimal.Decimal) SpotStatus {
	available := p.AvailableSpaces()
	if available <= 0 {
		return SpotStatusFull
	}

	limit := threshold.Mul(decimal.NewFromInt(int64(p.TotalSpaces)))
	if decimal.NewFromInt(int64(available)).LessThanOrEqual(limit) {
		return SpotStatusFewSpots
	}

	return SpotStatusAvailable
}

func (p ParkingSpot) OccupancyPercentage() decimal.Decimal {
	if p.TotalSpaces <= 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(p.OccupiedSpaces)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(p.TotalSpaces)), 2)
}
