package database

import (
	"context"
	"fmt"
	"time"

	"findmyspot/config"
	"findmyspot/pkg/logger"

	"github.com/valkey-io/valkey-go"
)

// Valkey database indexes, one per cache category
const (
	// GENERAL_CACHE_INDEX (DB 0) holds shared lookups such as the basement list
	GENERAL_CACHE_INDEX = iota

	// SESSION_CACHE_INDEX (DB 1) holds authentication-related temporary data
	SESSION_CACHE_INDEX

	// USER_CACHE_INDEX (DB 2) holds per-user data: profiles, identity
	// mappings and reservation history
	USER_CACHE_INDEX

	// EVENTS_CACHE_INDEX (DB 3) carries pub/sub traffic for live occupancy
	EVENTS_CACHE_INDEX

	// LOCK_CACHE_INDEX (DB 4) holds short-lived per-user reservation locks
	LOCK_CACHE_INDEX
)

var cacheIndexNames = map[int]string{
	GENERAL_CACHE_INDEX: "General",
	SESSION_CACHE_INDEX: "Session",
	USER_CACHE_INDEX:    "User",
	EVENTS_CACHE_INDEX:  "Events",
	LOCK_CACHE_INDEX:    "Lock",
}

func (s *DB) initializeCacheDB(config config.Config) error {
	log := s.log.Function("initializeCacheDB")
	log.Info("initializing cache database")

	address := config.DatabaseCacheAddress
	port := config.DatabaseCachePort
	if address == "" || port == 0 {
		return log.Error("failed to initialize cache database: address or port is empty")
	}

	initAddress := []string{fmt.Sprintf("%s:%d", address, port)}
	newClient := func(index int) (valkey.Client, error) {
		client, err := valkey.NewClient(valkey.ClientOption{
			InitAddress: initAddress,
			SelectDB:    index,
		})
		if err != nil {
			return nil, log.Err("failed to create valkey client", err, "cache", cacheIndexNames[index])
		}
		return client, nil
	}

	var cacheDB Cache
	var err error

	if cacheDB.General, err = newClient(GENERAL_CACHE_INDEX); err != nil {
		return err
	}
	if cacheDB.Session, err = newClient(SESSION_CACHE_INDEX); err != nil {
		return err
	}
	if cacheDB.User, err = newClient(USER_CACHE_INDEX); err != nil {
		return err
	}
	if cacheDB.Events, err = newClient(EVENTS_CACHE_INDEX); err != nil {
		return err
	}
	if cacheDB.Lock, err = newClient(LOCK_CACHE_INDEX); err != nil {
		return err
	}

	s.Cache = cacheDB

	if config.DatabaseCacheReset != -1 {
		go clearCacheDB(config.DatabaseCacheReset, cacheDB)
	}

	return nil
}

func (c Cache) byIndex(index int) CacheClient {
	switch index {
	case GENERAL_CACHE_INDEX:
		return c.General
	case SESSION_CACHE_INDEX:
		return c.Session
	case USER_CACHE_INDEX:
		return c.User
	case EVENTS_CACHE_INDEX:
		return c.Events
	case LOCK_CACHE_INDEX:
		return c.Lock
	default:
		return nil
	}
}

func clearCacheDB(index int, cacheDB Cache) {
	log := logger.New("database").File("cache.database").Function("clearCacheDB")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := cacheDB.byIndex(index)
	if client == nil {
		log.Warn("Invalid cache database index", "index", index)
		return
	}

	dbName := cacheIndexNames[index]
	if err := client.Do(ctx, client.B().Flushdb().Build()).Error(); err != nil {
		log.Er("Failed to clear cache database", err, "index", index, "dbName", dbName)
		return
	}

	log.Info("Successfully cleared cache database", "index", index, "dbName", dbName)
}
