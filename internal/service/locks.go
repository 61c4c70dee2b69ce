// Package service holds the business operations behind the HTTP API:
// account mutations, payment initiation and confirmation, proof
// verification and dashboard aggregation.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ursol-insurance/internal/ledger"
)

// ErrLockTimeout is returned when a key lock cannot be acquired in time.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Locker serializes work per key. Keys are "user:<id>" for balance
// mutations and "payment:<reference>" for confirmations.
type Locker interface {
	// Lock blocks until the key is held or ctx ends. The returned function
	// releases the lock and is safe to call more than once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func userKey(id string) string     { return "user:" + id }
func paymentKey(ref string) string { return "payment:" + ref }

// MemoryLocker is a per-key mutex for a single process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker returns an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: map[string]*keyLock{}}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(key, kl)
		})
	}, nil
}

func (l *MemoryLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// unlockScript deletes the key only if it still holds our token.
var unlockScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker is a lease-based lock shared by every instance using the same
// Redis. A lease expires after TTL even if its holder dies.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker creates a locker whose leases last ttl and whose Lock
// calls give up after wait.
func NewRedisLocker(rdb *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: "lock:", ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	full := l.prefix + key
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be done; release on a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = unlockScript.Run(releaseCtx, l.rdb, []string{full}, token).Err()
		})
	}, nil
}

// LockLease is the Redis lease for a confirmation that waits up to
// verifyTimeout on the payment rail and then publishes a ledger event.
func LockLease(verifyTimeout time.Duration) time.Duration {
	return verifyTimeout + ledger.PublishTimeout + 5*time.Second
}

// NewLocker picks the Redis locker when a client is available. Leases
// last lease; Lock calls give up after five seconds.
func NewLocker(rdb *redis.Client, lease time.Duration) Locker {
	if rdb == nil {
		return NewMemoryLocker()
	}
	return NewRedisLocker(rdb, lease, 5*time.Second)
}
