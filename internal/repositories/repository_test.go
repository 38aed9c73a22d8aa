package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock
}

func spotRows(id uuid.UUID, basement, total, occupied int, version int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "basement_number", "total_spaces", "occupied_spaces", "version"}).
		AddRow(id.String(), basement, total, occupied, version)
}

func TestParkingSpotRepository_AdjustOccupied(t *testing.T) {
	spotID := uuid.New()

	tests := []struct {
		name         string
		rowsAffected int64
		rows         *sqlmock.Rows
		expectedErr  error
		expectedOcc  int
	}{
		{
			name:         "increment within capacity",
			rowsAffected: 1,
			rows:         spotRows(spotID, 1, 50, 50, 7),
			expectedOcc:  50,
		},
		{
			name:         "rejected past capacity",
			rowsAffected: 0,
			rows:         spotRows(spotID, 1, 50, 50, 6),
			expectedErr:  ErrOccupancyOutOfRange,
			expectedOcc:  50,
		},
		{
			name:         "missing spot",
			rowsAffected: 0,
			rows:         sqlmock.NewRows([]string{"id"}),
			expectedErr:  gorm.ErrRecordNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupTestDB(t)
			repo := NewParkingSpotRepository(nil)

			mock.ExpectExec(`UPDATE "parking_spots" SET`).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))
			mock.ExpectQuery(`SELECT \* FROM "parking_spots"`).WillReturnRows(tt.rows)

			spot, err := repo.AdjustOccupied(context.Background(), db, spotID, 1)

			if tt.expectedErr != nil {
				assert.True(t, errors.Is(err, tt.expectedErr), "got %v", err)
			} else {
				require.NoError(t, err)
			}
			if spot != nil {
				assert.Equal(t, tt.expectedOcc, spot.OccupiedSpaces)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestParkingSpotRepository_GetAllWithoutCache(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewParkingSpotRepository(nil)

	rows := sqlmock.NewRows([]string{"id", "basement_number", "total_spaces", "occupied_spaces"}).
		AddRow(uuid.New().String(), 1, 50, 10).
		AddRow(uuid.New().String(), 2, 40, 40)
	mock.ExpectQuery(`SELECT \* FROM "parking_spots" .*ORDER BY basement_number ASC`).WillReturnRows(rows)

	spots, err := repo.GetAll(context.Background(), db)

	require.NoError(t, err)
	require.Len(t, spots, 2)
	assert.Equal(t, 1, spots[0].BasementNumber)
	assert.Equal(t, 40, spots[1].OccupiedSpaces)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_UpdateIfActive(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		expected     bool
	}{
		{name: "wins transition", rowsAffected: 1, expected: true},
		{name: "already inactive", rowsAffected: 0, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupTestDB(t)
			repo := NewReservationRepository()

			mock.ExpectExec(`UPDATE "reservations" SET .* WHERE \(id = \$\d+ AND is_active = \$\d+\)`).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			updated, err := repo.UpdateIfActive(
				context.Background(),
				db,
				uuid.New(),
				map[string]any{"is_active": false},
			)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, updated)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReservationRepository_GetActiveByUserNone(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewReservationRepository()

	mock.ExpectQuery(`SELECT \* FROM "reservations" WHERE \(user_id = \$1 AND is_active = \$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	reservation, err := repo.GetActiveByUser(context.Background(), db, uuid.New())

	assert.NoError(t, err)
	assert.Nil(t, reservation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_GetActiveByUser(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewReservationRepository()

	userID := uuid.New()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "basement_number", "start_time", "expiration_time", "is_active"}).
		AddRow(uuid.New().String(), userID.String(), 2, start, start.Add(5*time.Minute), true)
	mock.ExpectQuery(`SELECT \* FROM "reservations"`).WillReturnRows(rows)

	reservation, err := repo.GetActiveByUser(context.Background(), db, userID)

	require.NoError(t, err)
	require.NotNil(t, reservation)
	assert.Equal(t, userID, reservation.UserID)
	assert.Equal(t, 2, reservation.BasementNumber)
	assert.True(t, reservation.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationHistoryRepository_GetUserHistoryLimit(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewReservationHistoryRepository(nil)

	userID := uuid.New()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "basement_number", "date", "was_confirmed", "duration"}).
		AddRow(uuid.New().String(), userID.String(), 1, now, true, 10).
		AddRow(uuid.New().String(), userID.String(), 2, now.Add(-time.Hour), false, 3).
		AddRow(uuid.New().String(), userID.String(), 3, now.Add(-2*time.Hour), true, 42)
	mock.ExpectQuery(`SELECT \* FROM "reservation_histories" .*ORDER BY date DESC`).WillReturnRows(rows)

	history, err := repo.GetUserHistory(context.Background(), db, userID, 2)

	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].BasementNumber)
	assert.Equal(t, 3, history[1].Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationHistoryRepository_GetUserStats(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewReservationHistoryRepository(nil)

	rows := sqlmock.NewRows([]string{"total_reservations", "confirmed_reservations", "total_minutes"}).
		AddRow(4, 3, 57)
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total_reservations`).WillReturnRows(rows)

	stats, err := repo.GetUserStats(context.Background(), db, uuid.New())

	require.NoError(t, err)
	assert.Equal(t, HistoryStats{TotalReservations: 4, ConfirmedReservations: 3, TotalMinutes: 57}, *stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}
