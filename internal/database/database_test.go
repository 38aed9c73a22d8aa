package database

import (
	"context"
	"testing"
	"time"

	"findmyspot/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCacheConstants(t *testing.T) {
	assert.Equal(t, 0, GENERAL_CACHE_INDEX)
	assert.Equal(t, 1, SESSION_CACHE_INDEX)
	assert.Equal(t, 2, USER_CACHE_INDEX)
	assert.Equal(t, 3, EVENTS_CACHE_INDEX)
	assert.Equal(t, 4, LOCK_CACHE_INDEX)
	assert.Len(t, cacheIndexNames, 5)
}

func TestCache_ByIndex(t *testing.T) {
	var cache Cache

	for index := range cacheIndexNames {
		assert.Nil(t, cache.byIndex(index))
	}
	assert.Nil(t, cache.byIndex(42))
}

func TestModels_DependencyOrder(t *testing.T) {
	tables := Models()

	assert.Len(t, tables, 4)
	assert.IsType(t, &models.User{}, tables[0])
	assert.IsType(t, &models.ParkingSpot{}, tables[1])
	assert.IsType(t, &models.ReservationHistory{}, tables[3])
}

func TestDB_SQLWithContextWithoutConnection(t *testing.T) {
	db := &DB{}

	assert.Nil(t, db.SQLWithContext(context.Background()))
}

func TestCacheBuilder_Keys(t *testing.T) {
	id := uuid.MustParse("6f1c2a9e-1111-4c4c-9d9d-000000000001")

	tests := []struct {
		name     string
		builder  *CacheBuilder
		expected string
	}{
		{name: "string key", builder: NewCacheBuilder(nil, "spots"), expected: "spots"},
		{name: "uuid key", builder: NewCacheBuilder(nil, id), expected: id.String()},
		{
			name:     "hashed key",
			builder:  NewCacheBuilder(nil, id).WithHash("reservation_history"),
			expected: "reservation_history:" + id.String(),
		},
		{name: "empty hash", builder: NewCacheBuilder(nil, "spots").WithHash(""), expected: "spots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.builder.Key())
		})
	}
}

func TestCacheBuilder_NilClientIsNoop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	builder := NewCacheBuilder(nil, "spots").
		WithContext(ctx).
		WithStruct(map[string]int{"basement": 1}).
		WithTTL(time.Minute)

	assert.NoError(t, builder.Set())
	assert.NoError(t, builder.Delete())

	var out map[string]int
	found, err := builder.Get(&out)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestCacheBuilder_Validation(t *testing.T) {
	assert.EqualError(t, NewCacheBuilder(nil, "").WithValue("x").Set(), "key is required")
	assert.EqualError(t, NewCacheBuilder(nil, "k").Set(), "value is required")

	_, err := NewCacheBuilder(nil, "").Get(&struct{}{})
	assert.EqualError(t, err, "key is required")

	err = NewCacheBuilder(nil, "k").WithStruct(make(chan int)).Set()
	assert.Error(t, err)
}

func TestCacheBuilder_TimeoutContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	builder := NewCacheBuilder(nil, "k").WithContext(ctx).WithTimeout(5 * time.Second)
	timeoutCtx, timeoutCancel := builder.createTimeoutContext()
	defer timeoutCancel()

	deadline, ok := timeoutCtx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(100*time.Millisecond), deadline, 100*time.Millisecond)
}
