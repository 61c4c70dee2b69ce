package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ursol-insurance/internal/ledger"
)

func exerciseMutualExclusion(t *testing.T, l Locker) {
	t.Helper()
	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "user:u1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestMemoryLockerMutualExclusion(t *testing.T) {
	l := NewMemoryLocker()
	exerciseMutualExclusion(t, l)
	assert.Empty(t, l.locks)
}

func TestMemoryLockerHonoursContext(t *testing.T) {
	l := NewMemoryLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Lock(context.Background(), "other")
	require.NoError(t, err)
	other()
	other()
}

func TestRedisLockerMutualExclusion(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	exerciseMutualExclusion(t, NewRedisLocker(rdb, time.Second, 5*time.Second))
	assert.False(t, mr.Exists("lock:user:u1"))
}

func TestRedisLockerTimesOutAndKeepsForeignLease(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewRedisLocker(rdb, time.Second, 50*time.Millisecond)
	unlock, err := l.Lock(context.Background(), "payment:abc")
	require.NoError(t, err)

	_, err = l.Lock(context.Background(), "payment:abc")
	assert.ErrorIs(t, err, ErrLockTimeout)

	// A lease taken over by someone else is not deleted by a stale holder.
	require.NoError(t, mr.Set("lock:payment:abc", "someone-else"))
	unlock()
	v, err := mr.Get("lock:payment:abc")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestNewLockerFallsBackToMemory(t *testing.T) {
	_, ok := NewLocker(nil, time.Second).(*MemoryLocker)
	assert.True(t, ok)
}

func TestLockLeaseOutlastsVerification(t *testing.T) {
	lease := LockLease(10 * time.Second)
	assert.Greater(t, lease, 10*time.Second+ledger.PublishTimeout)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	unlock, err := NewLocker(rdb, lease).Lock(context.Background(), "payment:abc")
	require.NoError(t, err)
	defer unlock()
	assert.Equal(t, lease, mr.TTL("lock:payment:abc"))
}
