package services

import (
	"context"
	"sync"
	"time"

	"findmyspot/internal/constants"
	"findmyspot/internal/database"
	"findmyspot/pkg/logger"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// Locker serializes work on a key across goroutines, and with ValkeyLocker
// across server instances. Lock blocks until the key is acquired or ctx is
// done; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

const (
	lockTTLMargin = 5 * time.Second
	lockRetryWait = 25 * time.Millisecond
)

// lockTTL outlives the operation holding the lock.
func lockTTL(operationTimeout time.Duration) time.Duration {
	return operationTimeout + lockTTLMargin
}

var releaseLockScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type ValkeyLocker struct {
	client database.CacheClient
	ttl    time.Duration
	log    logger.Logger
}

func NewValkeyLocker(client database.CacheClient, operationTimeout time.Duration) *ValkeyLocker {
	return &ValkeyLocker{
		client: client,
		ttl:    lockTTL(operationTimeout),
		log:    logger.New("ValkeyLocker"),
	}
}

func (l *ValkeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	log := l.log.TraceFromContext(ctx).Function("Lock")

	lockKey := constants.ReservationLockPrefix + ":" + key
	token := uuid.NewString()

	for {
		err := l.client.Do(
			ctx,
			l.client.B().Set().Key(lockKey).Value(token).Nx().Px(l.ttl).Build(),
		).Error()
		if err == nil {
			break
		}
		if !valkey.IsValkeyNil(err) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, log.Err("failed to acquire lock", err, "key", lockKey)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		err := releaseLockScript.Exec(releaseCtx, l.client, []string{lockKey}, []string{token}).Error()
		if err != nil {
			log.Warn("failed to release lock", "key", lockKey, "error", err)
		}
	}, nil
}

// LocalLocker is an in-process keyed mutex for single-node setups and tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &localLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, lock, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, lock, true) })
	}, nil
}

func (l *LocalLocker) release(key string, lock *localLock, held bool) {
	if held {
		<-lock.ch
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}
