package constants

import "time"

const (
	UserCachePrefix               = "user"                // User by ID (CacheBuilder adds colon)
	OIDCMappingCachePrefix        = "oidc"                // Identity subject -> user ID
	UserCacheExpiry               = 7 * 24 * time.Hour    // 7 days
	ParkingSpotsCacheKey          = "parking_spots"       // Ordered basement list
	ParkingSpotsCacheExpiry       = 30 * time.Second
	ReservationHistoryCachePrefix = "reservation_history" // History by user ID
	ReservationHistoryCacheExpiry = 24 * time.Hour
	MaxHistoryEntries             = 100
	ReservationLockPrefix         = "reservation_lock"    // Per-user reserve lock
)
