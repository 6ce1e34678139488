package docsync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker serializes sync passes per namespace.
//
// The warmth check in Sync is a check-then-act sequence; without a lease,
// two concurrent callers on a cold cache would both scan and upsert. The
// lease makes the sync slot itself the acquired resource: claim it, do the
// work, release it. Leases carry a TTL so a crashed holder cannot wedge a
// namespace forever. Each acquisition is fenced by an opaque token, so a
// holder whose lease already expired cannot release the slot out from
// under whoever claimed it next.
type Locker interface {
	// Acquire claims the sync slot for key. On success it returns a token
	// identifying this acquisition. Returns acquired false without error
	// when another holder has the slot.
	Acquire(ctx context.Context, key string) (token string, acquired bool, err error)

	// Release frees the slot if token still holds it. Releasing with a
	// stale token, or an unheld slot, is a no-op.
	Release(ctx context.Context, key, token string) error
}

// DefaultLeaseTTL bounds how long a sync lease survives its holder.
const DefaultLeaseTTL = 30 * time.Second

type memoryLease struct {
	token  string
	expiry time.Time
}

// MemoryLocker is an in-process Locker. Sufficient for a single daemon
// instance; deployments running replicas share a RedisLocker instead.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryLease
	ttl    time.Duration
}

// NewMemoryLocker creates a MemoryLocker with the given lease TTL.
func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &MemoryLocker{
		leases: make(map[string]memoryLease),
		ttl:    ttl,
	}
}

// Acquire implements Locker.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if lease, held := l.leases[key]; held && now.Before(lease.expiry) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.leases[key] = memoryLease{token: token, expiry: now.Add(l.ttl)}
	return token, true, nil
}

// Release implements Locker.
func (l *MemoryLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lease, held := l.leases[key]; held && lease.token == token {
		delete(l.leases, key)
	}
	return nil
}
