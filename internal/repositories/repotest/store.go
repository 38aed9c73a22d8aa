// Package repotest provides an in-memory implementation of the repositories
// for service tests. It mirrors the database semantics the services rely on:
// conditional occupancy updates, the one-active-reservation-per-user unique
// index, compare-and-set reservation transitions and transaction rollback.
package repotest

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"findmyspot/internal/constants"
	"findmyspot/internal/models"
	"findmyspot/internal/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryCacheKey names the per-user history cache entry in CacheClears.
func HistoryCacheKey(userID uuid.UUID) string {
	return constants.ReservationHistoryCachePrefix + ":" + userID.String()
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	spots        map[uuid.UUID]models.ParkingSpot
	reservations map[uuid.UUID]models.Reservation
	history      []models.ReservationHistory
	users        map[uuid.UUID]models.User

	failures    map[string]error
	inTx        bool
	cacheClears []CacheClear
}

// CacheClear records one cache invalidation and whether a transaction was
// still open when it happened.
type CacheClear struct {
	Key      string
	DuringTx bool
}

func NewStore() *Store {
	return &Store{
		spots:        make(map[uuid.UUID]models.ParkingSpot),
		reservations: make(map[uuid.UUID]models.Reservation),
		users:        make(map[uuid.UUID]models.User),
		failures:     make(map[string]error),
	}
}

// Repository exposes the store through the repository interfaces.
func (s *Store) Repository() repositories.Repository {
	return repositories.Repository{
		User:        &userRepo{s},
		ParkingSpot: &spotRepo{s},
		Reservation: &reservationRepo{s},
		History:     &historyRepo{s},
	}
}

// FailOn makes the next call of op return err. Ops are named
// "<repo>.<Method>", e.g. "reservation.Create".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Execute runs fn as a serialized transaction and restores the previous
// state when fn fails or panics.
func (s *Store) Execute(ctx context.Context, fn func(context.Context, *gorm.DB) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.setInTx(true)
	defer s.setInTx(false)

	snapshot := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.restore(snapshot)
			panic(r)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(ctx, nil)
}

func (s *Store) setInTx(inTx bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inTx = inTx
}

func (s *Store) recordClear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheClears = append(s.cacheClears, CacheClear{Key: key, DuringTx: s.inTx})
}

// CacheClears returns the cache invalidations seen so far, oldest first.
func (s *Store) CacheClears() []CacheClear {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cacheClears)
}

// AddSpot seeds a basement and returns it with its assigned ID.
func (s *Store) AddSpot(basement, total, occupied int) models.ParkingSpot {
	s.mu.Lock()
	defer s.mu.Unlock()

	spot := models.ParkingSpot{
		BaseUUIDModel:  models.BaseUUIDModel{ID: uuid.New()},
		BasementNumber: basement,
		TotalSpaces:    total,
		OccupiedSpaces: occupied,
	}
	s.spots[spot.ID] = spot
	return spot
}

func (s *Store) Spot(id uuid.UUID) models.ParkingSpot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spots[id]
}

func (s *Store) Spots() []models.ParkingSpot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(maps.Values(s.spots))
}

func (s *Store) Reservation(id uuid.UUID) models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reservations[id]
}

func (s *Store) Reservations() []models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(maps.Values(s.reservations))
}

func (s *Store) History() []models.ReservationHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// ActiveCount returns the number of active reservations held by userID.
func (s *Store) ActiveCount(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, reservation := range s.reservations {
		if reservation.UserID == userID && reservation.IsActive {
			count++
		}
	}
	return count
}

type storeState struct {
	spots        map[uuid.UUID]models.ParkingSpot
	reservations map[uuid.UUID]models.Reservation
	history      []models.ReservationHistory
	users        map[uuid.UUID]models.User
}

func (s *Store) snapshot() storeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storeState{
		spots:        maps.Clone(s.spots),
		reservations: maps.Clone(s.reservations),
		history:      slices.Clone(s.history),
		users:        maps.Clone(s.users),
	}
}

func (s *Store) restore(state storeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spots = state.spots
	s.reservations = state.reservations
	s.history = state.history
	s.users = state.users
}

// begin checks cancellation and injected failures for op and returns with
// s.mu held.
func (s *Store) begin(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		s.mu.Unlock()
		return err
	}
	return nil
}

type spotRepo struct{ s *Store }

func (r *spotRepo) GetByID(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*models.ParkingSpot, error) {
	if err := r.s.begin(ctx, "spot.GetByID"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	spot, ok := r.s.spots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &spot, nil
}

func (r *spotRepo) GetAll(ctx context.Context, _ *gorm.DB) ([]*models.ParkingSpot, error) {
	if err := r.s.begin(ctx, "spot.GetAll"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	spots := make([]*models.ParkingSpot, 0, len(r.s.spots))
	for _, spot := range r.s.spots {
		spots = append(spots, &spot)
	}
	slices.SortFunc(spots, func(a, b *models.ParkingSpot) int {
		return a.BasementNumber - b.BasementNumber
	})
	return spots, nil
}

func (r *spotRepo) AdjustOccupied(
	ctx context.Context,
	_ *gorm.DB,
	id uuid.UUID,
	delta int,
) (*models.ParkingSpot, error) {
	if err := r.s.begin(ctx, "spot.AdjustOccupied"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	spot, ok := r.s.spots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}

	next := spot.OccupiedSpaces + delta
	if next < 0 || next > spot.TotalSpaces {
		return &spot, repositories.ErrOccupancyOutOfRange
	}

	spot.OccupiedSpaces = next
	spot.Version++
	r.s.spots[id] = spot
	return &spot, nil
}

func (r *spotRepo) Create(ctx context.Context, _ *gorm.DB, spot *models.ParkingSpot) error {
	if err := r.s.begin(ctx, "spot.Create"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if spot.ID == uuid.Nil {
		spot.ID = uuid.New()
	}
	for _, existing := range r.s.spots {
		if existing.BasementNumber == spot.BasementNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	r.s.spots[spot.ID] = *spot
	return nil
}

func (r *spotRepo) ClearCache(context.Context) {
	r.s.recordClear(constants.ParkingSpotsCacheKey)
}

type reservationRepo struct{ s *Store }

func (r *reservationRepo) Create(ctx context.Context, _ *gorm.DB, reservation *models.Reservation) error {
	if err := r.s.begin(ctx, "reservation.Create"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if reservation.IsActive {
		for _, existing := range r.s.reservations {
			if existing.UserID == reservation.UserID && existing.IsActive {
				return gorm.ErrDuplicatedKey
			}
		}
	}

	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	now := time.Now()
	reservation.CreatedAt = now
	reservation.UpdatedAt = now
	r.s.reservations[reservation.ID] = *reservation
	return nil
}

func (r *reservationRepo) GetByID(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	if err := r.s.begin(ctx, "reservation.GetByID"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	reservation, ok := r.s.reservations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &reservation, nil
}

func (r *reservationRepo) GetByIDForUpdate(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
) (*models.Reservation, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *reservationRepo) GetActiveByUser(
	ctx context.Context,
	_ *gorm.DB,
	userID uuid.UUID,
) (*models.Reservation, error) {
	if err := r.s.begin(ctx, "reservation.GetActiveByUser"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	for _, reservation := range r.s.reservations {
		if reservation.UserID == userID && reservation.IsActive {
			return &reservation, nil
		}
	}
	return nil, nil
}

func (r *reservationRepo) UpdateIfActive(
	ctx context.Context,
	_ *gorm.DB,
	id uuid.UUID,
	updates map[string]any,
) (bool, error) {
	if err := r.s.begin(ctx, "reservation.UpdateIfActive"); err != nil {
		return false, err
	}
	defer r.s.mu.Unlock()

	reservation, ok := r.s.reservations[id]
	if !ok || !reservation.IsActive {
		return false, nil
	}
	r.s.reservations[id] = applyUpdates(reservation, updates)
	return true, nil
}

func (r *reservationRepo) GetExpiredUnconfirmed(
	ctx context.Context,
	_ *gorm.DB,
	before time.Time,
	limit int,
) ([]*models.Reservation, error) {
	if err := r.s.begin(ctx, "reservation.GetExpiredUnconfirmed"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	var expired []*models.Reservation
	for _, reservation := range r.s.reservations {
		if reservation.IsActive && !reservation.IsConfirmed && reservation.ExpirationTime.Before(before) {
			expired = append(expired, &reservation)
		}
	}
	slices.SortFunc(expired, func(a, b *models.Reservation) int {
		return a.ExpirationTime.Compare(b.ExpirationTime)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func applyUpdates(reservation models.Reservation, updates map[string]any) models.Reservation {
	for column, value := range updates {
		switch column {
		case models.ReservationColumnIsActive:
			reservation.IsActive = value.(bool)
		case models.ReservationColumnIsConfirmed:
			reservation.IsConfirmed = value.(bool)
		case models.ReservationColumnIsCompleted:
			reservation.IsCompleted = value.(bool)
		case models.ReservationColumnCancelledAt:
			cancelledAt := value.(time.Time)
			reservation.CancelledAt = &cancelledAt
		case models.ReservationColumnCancelReason:
			reason := value.(models.CancelReason)
			reservation.CancelReason = &reason
		}
	}
	reservation.UpdatedAt = time.Now()
	return reservation
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Create(ctx context.Context, _ *gorm.DB, history *models.ReservationHistory) error {
	if err := r.s.begin(ctx, "history.Create"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	for _, existing := range r.s.history {
		if existing.ReservationID == history.ReservationID {
			return gorm.ErrDuplicatedKey
		}
	}
	if history.ID == uuid.Nil {
		history.ID = uuid.New()
	}
	r.s.history = append(r.s.history, *history)
	return nil
}

func (r *historyRepo) GetUserHistory(
	ctx context.Context,
	_ *gorm.DB,
	userID uuid.UUID,
	limit int,
) ([]*models.ReservationHistory, error) {
	if err := r.s.begin(ctx, "history.GetUserHistory"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	var entries []*models.ReservationHistory
	for _, entry := range r.s.history {
		if entry.UserID == userID {
			entries = append(entries, &entry)
		}
	}
	slices.SortStableFunc(entries, func(a, b *models.ReservationHistory) int {
		return b.Date.Compare(a.Date)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *historyRepo) GetUserStats(
	ctx context.Context,
	_ *gorm.DB,
	userID uuid.UUID,
) (*repositories.HistoryStats, error) {
	if err := r.s.begin(ctx, "history.GetUserStats"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	var stats repositories.HistoryStats
	for _, entry := range r.s.history {
		if entry.UserID != userID {
			continue
		}
		stats.TotalReservations++
		if entry.WasConfirmed {
			stats.ConfirmedReservations++
		}
		stats.TotalMinutes += int64(entry.Duration)
	}
	return &stats, nil
}

func (r *historyRepo) ClearUserHistoryCache(_ context.Context, userID uuid.UUID) {
	r.s.recordClear(HistoryCacheKey(userID))
}

type userRepo struct{ s *Store }

func (r *userRepo) GetByID(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*models.User, error) {
	if err := r.s.begin(ctx, "user.GetByID"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (r *userRepo) GetByOIDCUserID(ctx context.Context, _ *gorm.DB, oidcUserID string) (*models.User, error) {
	if err := r.s.begin(ctx, "user.GetByOIDCUserID"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	for _, user := range r.s.users {
		if user.OIDCUserID == oidcUserID {
			return &user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *userRepo) Update(ctx context.Context, _ *gorm.DB, user *models.User) error {
	if err := r.s.begin(ctx, "user.Update"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	r.s.users[user.ID] = *user
	return nil
}

func (r *userRepo) FindOrCreateOIDCUser(
	ctx context.Context,
	tx *gorm.DB,
	claims repositories.IdentityClaims,
	now time.Time,
) (*models.User, error) {
	user, err := r.GetByOIDCUserID(ctx, tx, claims.Subject)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if user == nil {
		user = &models.User{BaseUUIDModel: models.BaseUUIDModel{ID: uuid.New()}, IsActive: true}
	}

	user.UpdateFromIdentity(
		claims.Subject,
		claims.Email,
		claims.Name,
		claims.FirstName,
		claims.LastName,
		claims.EmailVerified,
		now,
	)
	if err := user.BeforeCreate(nil); err != nil {
		return nil, err
	}

	if err := r.Update(ctx, tx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepo) ClearUserCacheByOIDC(context.Context, *gorm.DB, string) error {
	return nil
}

// AddUser seeds a user and returns it with its assigned ID.
func (s *Store) AddUser(oidcUserID string, isAdmin bool) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := models.User{
		BaseUUIDModel: models.BaseUUIDModel{ID: uuid.New()},
		OIDCUserID:    oidcUserID,
		IsAdmin:       isAdmin,
		IsActive:      true,
	}
	s.users[user.ID] = user
	return user
}
