package yascheduler

import (
	"context"
	"time"

	"github.com/YaCodeDev/YaTgPoster/threadsafemap"
	"github.com/YaCodeDev/YaTgPoster/yaerrors"
)

// Locker grants short-lived exclusive claims on keys, so that several instances
// of the service never send the same post twice.
type Locker interface {
	// TryLock reports whether the claim was taken. A claim expires after ttl even
	// if it is never released.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, yaerrors.Error)
	// Unlock releases a claim held by this locker. Claims of others are untouched.
	Unlock(ctx context.Context, key string) yaerrors.Error
}

// MemoryLocker is a Locker for a single process. The zero value is ready to use.
type MemoryLocker struct {
	leases threadsafemap.ThreadSafeMap[string, time.Time]
	clock  func() time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{clock: time.Now}
}

func (m *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (bool, yaerrors.Error) {
	now := time.Now()
	if m.clock != nil {
		now = m.clock()
	}

	locked := false

	m.leases.Update(key, func(expires time.Time, exists bool) (time.Time, bool) {
		if exists && now.Before(expires) {
			return expires, true
		}

		locked = true

		return now.Add(ttl), true
	})

	return locked, nil
}

func (m *MemoryLocker) Unlock(_ context.Context, key string) yaerrors.Error {
	m.leases.Delete(key)

	return nil
}
