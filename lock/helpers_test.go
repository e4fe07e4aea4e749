package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jathurchan/davlock/testutil"
	"github.com/jathurchan/davlock/types"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// sequentialTokens returns a generator producing "opaquelocktoken:t1", "t2", ...
func sequentialTokens() TokenGenerator {
	var n atomic.Int64
	return func() types.StateToken {
		return types.StateToken(fmt.Sprintf("%st%d", TokenScheme, n.Add(1)))
	}
}

// newTestManager returns a manager driven by a fake clock with deterministic tokens.
func newTestManager(t *testing.T, opts ...LockManagerOption) (*lockManager, *testutil.FakeClock) {
	t.Helper()
	clk := testutil.NewFakeClock(testEpoch)
	base := []LockManagerOption{
		WithClock(clk),
		WithTokenGenerator(sequentialTokens()),
		WithExpiryRounding(0),
	}
	lm := NewLockManager(append(base, opts...)...).(*lockManager)
	t.Cleanup(func() { _ = lm.Close() })
	return lm, clk
}

func mustLock(t *testing.T, lm LockManager, req LockRequest) *types.LockInfo {
	t.Helper()
	info, err := lm.Lock(context.Background(), req)
	testutil.RequireNoError(t, err, "Lock(%+v)", req)
	return info
}

func exclusive(path string, recursive bool, timeout time.Duration) LockRequest {
	return LockRequest{Path: path, Recursive: recursive, Owner: "alice", Share: types.ShareExclusive, Timeout: timeout}
}

func shared(path string, recursive bool, timeout time.Duration) LockRequest {
	return LockRequest{Path: path, Recursive: recursive, Owner: "bob", Share: types.ShareShared, Timeout: timeout}
}

type releaseEvent struct {
	info   types.LockInfo
	reason types.ReleaseReason
	at     time.Time
}

// releaseRecorder collects release notifications.
type releaseRecorder struct {
	mu     sync.Mutex
	events []releaseEvent
}

func (r *releaseRecorder) handler(info types.LockInfo, reason types.ReleaseReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, releaseEvent{info: info, reason: reason, at: time.Now()})
}

func (r *releaseRecorder) snapshot() []releaseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]releaseEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *releaseRecorder) count() int {
	return len(r.snapshot())
}

func (r *releaseRecorder) countFor(token types.StateToken) int {
	n := 0
	for _, e := range r.snapshot() {
		if e.info.Token == token {
			n++
		}
	}
	return n
}

// memoryStore is an in-memory Store with failure injection. A non-nil gate
// holds every write until it is closed.
type memoryStore struct {
	mu        sync.Mutex
	rows      map[types.StateToken]types.LockInfo
	saveErr   error
	deleteErr error
	loadErr   error
	saveCount int
	deletes   []types.StateToken
	gate      chan struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[types.StateToken]types.LockInfo)}
}

func (s *memoryStore) wait() {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (s *memoryStore) Save(_ context.Context, info types.LockInfo) error {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCount++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.rows[info.Token] = info
	return nil
}

func (s *memoryStore) Delete(_ context.Context, token types.StateToken) error {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, token)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.rows, token)
	return nil
}

func (s *memoryStore) Load(context.Context) ([]types.LockInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make([]types.LockInfo, 0, len(s.rows))
	for _, info := range s.rows {
		out = append(out, info)
	}
	return out, nil
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) has(token types.StateToken) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[token]
	return ok
}

func (s *memoryStore) row(token types.StateToken) types.LockInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[token]
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memoryStore) saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCount
}

func (s *memoryStore) deletedTokens() []types.StateToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.StateToken(nil), s.deletes...)
}

// pruningStore adds ExpiredPruner to memoryStore.
type pruningStore struct {
	*memoryStore
	pruneErr error
	prunedAt time.Time
}

func (s *pruningStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pruneErr != nil {
		return 0, s.pruneErr
	}
	s.prunedAt = now
	var n int64
	for token, info := range s.rows {
		if !info.IsInfinite() && !info.ExpiresAt.After(now) {
			delete(s.rows, token)
			n++
		}
	}
	return n, nil
}

var errStoreDown = errors.New("store unavailable")

// countingMetrics records the calls the manager makes.
type countingMetrics struct {
	NoOpMetrics
	mu        sync.Mutex
	granted   int
	conflicts int
	expired   int
	unlocked  int
	active    int
}

func (m *countingMetrics) IncrLockRequest(_ types.ShareMode, success bool, conflict bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.granted++
	}
	if conflict {
		m.conflicts++
	}
}

func (m *countingMetrics) IncrExpiredLock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired++
}

func (m *countingMetrics) IncrUnlockRequest(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.unlocked++
	}
}

func (m *countingMetrics) SetActiveLocks(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = n
}

func (m *countingMetrics) get() (granted, conflicts, expired, unlocked, active int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.granted, m.conflicts, m.expired, m.unlocked, m.active
}

// nextWakeup returns the reclamation loop's scheduled wakeup, zero while idle.
func (lm *lockManager) nextWakeup() time.Time {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.wakeAt
}

func (lm *lockManager) pendingExpirations() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.expirations.Len()
}
