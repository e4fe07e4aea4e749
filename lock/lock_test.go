package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jathurchan/davlock/logger"
	"github.com/jathurchan/davlock/testutil"
	"github.com/jathurchan/davlock/types"
)

func TestLockManager_SharedCompatibility(t *testing.T) {
	lm, _ := newTestManager(t)

	first := mustLock(t, lm, LockRequest{Path: "/docs/a.txt", Owner: "o1", Share: types.ShareShared, Timeout: time.Minute})
	second := mustLock(t, lm, LockRequest{Path: "/docs/a.txt", Owner: "o2", Share: types.ShareShared, Timeout: time.Minute})

	testutil.AssertNotEqual(t, first.Token, second.Token)

	_, err := lm.Lock(context.Background(), exclusive("/docs/a.txt", false, time.Minute))
	var conflict *ConflictError
	testutil.AssertErrorAs(t, err, &conflict)
	if conflict != nil {
		testutil.AssertElementsMatch(t,
			[]string{string(first.Token), string(second.Token)},
			[]string{string(conflict.Tokens[0]), string(conflict.Tokens[1])},
		)
	}
}

func TestLockManager_Exclusivity(t *testing.T) {
	tests := []struct {
		name  string
		share types.ShareMode
	}{
		{"exclusive after exclusive", types.ShareExclusive},
		{"shared after exclusive", types.ShareShared},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lm, _ := newTestManager(t)
			held := mustLock(t, lm, exclusive("/a", false, time.Minute))

			_, err := lm.Lock(context.Background(), LockRequest{Path: "/a", Owner: "o2", Share: tt.share, Timeout: time.Minute})
			testutil.AssertErrorIs(t, err, ErrConflict)

			var conflict *ConflictError
			if errors.As(err, &conflict) {
				testutil.AssertEqual(t, "/a", conflict.Path)
				testutil.AssertEqual(t, []types.StateToken{held.Token}, conflict.Tokens)
			}
		})
	}
}

func TestLockManager_PathOverlap(t *testing.T) {
	tests := []struct {
		name        string
		held        LockRequest
		requested   LockRequest
		wantConflict bool
	}{
		{"recursive ancestor blocks child", exclusive("/p", true, time.Minute), shared("/p/child", false, time.Minute), true},
		{"recursive ancestor blocks grandchild", exclusive("/p", true, time.Minute), exclusive("/p/a/b", false, time.Minute), true},
		{"zero-depth ancestor allows child", exclusive("/p", false, time.Minute), exclusive("/p/child", false, time.Minute), false},
		{"recursive request blocked by locked descendant", exclusive("/p/child", false, time.Minute), exclusive("/p", true, time.Minute), true},
		{"zero-depth request ignores locked descendant", exclusive("/p/child", false, time.Minute), exclusive("/p", false, time.Minute), false},
		{"siblings are independent", exclusive("/p/a", true, time.Minute), exclusive("/p/b", true, time.Minute), false},
		{"prefix is not ancestry", exclusive("/p/ab", true, time.Minute), exclusive("/p/abc", false, time.Minute), false},
		{"root recursive blocks everything", exclusive("/", true, time.Minute), shared("/x/y", false, time.Minute), true},
		{"shared recursive tolerates shared child", shared("/p", true, time.Minute), shared("/p/child", false, time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lm, _ := newTestManager(t)
			mustLock(t, lm, tt.held)

			_, err := lm.Lock(context.Background(), tt.requested)
			if tt.wantConflict {
				testutil.AssertErrorIs(t, err, ErrConflict)
			} else {
				testutil.AssertNoError(t, err)
			}
		})
	}
}

func TestLockManager_ConflictMutatesNothing(t *testing.T) {
	metrics := &countingMetrics{}
	lm, _ := newTestManager(t, WithMetrics(metrics))
	mustLock(t, lm, exclusive("/a", true, time.Minute))

	_, err := lm.Lock(context.Background(), exclusive("/a/b", false, time.Minute))
	testutil.AssertErrorIs(t, err, ErrConflict)

	_, total, err := lm.GetLocks(context.Background(), FilterAll, 0, 0)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, 1, total)

	granted, conflicts, _, _, active := metrics.get()
	testutil.AssertEqual(t, 1, granted)
	testutil.AssertEqual(t, 1, conflicts)
	testutil.AssertEqual(t, 1, active)
}

func TestLockManager_TimeoutNormalization(t *testing.T) {
	tests := []struct {
		name        string
		timeout     time.Duration
		wantTimeout time.Duration
		wantErr     error
	}{
		{"zero uses default", 0, 30 * time.Second, nil},
		{"explicit timeout kept", 5 * time.Second, 5 * time.Second, nil},
		{"above max is capped", 2 * time.Hour, time.Hour, nil},
		{"infinite accepted", types.InfiniteTimeout, types.InfiniteTimeout, nil},
		{"other negative rejected", -2 * time.Second, 0, ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lm, _ := newTestManager(t, WithDefaultTimeout(30*time.Second), WithMaxTimeout(time.Hour))

			info, err := lm.Lock(context.Background(), exclusive("/r", false, tt.timeout))
			if tt.wantErr != nil {
				testutil.AssertErrorIs(t, err, tt.wantErr)
				return
			}
			testutil.RequireNoError(t, err)
			testutil.AssertEqual(t, tt.wantTimeout, info.Timeout)
			testutil.AssertEqual(t, testEpoch, info.IssuedAt)
			if tt.wantTimeout == types.InfiniteTimeout {
				testutil.AssertTrue(t, info.IsInfinite())
			} else {
				testutil.AssertEqual(t, testEpoch.Add(tt.wantTimeout), info.ExpiresAt)
			}
		})
	}
}

func TestLockManager_LockValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     LockRequest
		wantErr error
	}{
		{"empty path", LockRequest{Path: ""}, ErrInvalidPath},
		{"bad access", LockRequest{Path: "/a", Access: types.AccessType(9)}, ErrInvalidAccessType},
		{"bad share", LockRequest{Path: "/a", Share: types.ShareMode(9)}, ErrInvalidShareMode},
	}

	lm, _ := newTestManager(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lm.Lock(context.Background(), tt.req)
			testutil.AssertErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLockManager_PathIsCleaned(t *testing.T) {
	lm, _ := newTestManager(t)

	info := mustLock(t, lm, exclusive("docs//a/../b/", false, time.Minute))
	testutil.AssertEqual(t, "/docs/b", info.Path)

	_, err := lm.Lock(context.Background(), exclusive("/docs/b", false, time.Minute))
	testutil.AssertErrorIs(t, err, ErrConflict)
}

func TestLockManager_CanceledContext(t *testing.T) {
	lm, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lm.Lock(ctx, exclusive("/a", false, time.Minute))
	testutil.AssertErrorIs(t, err, context.Canceled)
}

func TestLockManager_Refresh(t *testing.T) {
	lm, clk := newTestManager(t)
	info := mustLock(t, lm, exclusive("/a", false, 10*time.Second))

	clk.Advance(4 * time.Second)
	refreshed, err := lm.Refresh(context.Background(), info.Token, 10*time.Second)
	testutil.RequireNoError(t, err)

	testutil.AssertEqual(t, info.Token, refreshed.Token)
	testutil.AssertEqual(t, testEpoch.Add(4*time.Second), refreshed.IssuedAt)
	testutil.AssertEqual(t, testEpoch.Add(14*time.Second), refreshed.ExpiresAt)

	// Past the original expiry the lock is still held.
	clk.Advance(8 * time.Second)
	_, err = lm.Lock(context.Background(), exclusive("/a", false, time.Minute))
	testutil.AssertErrorIs(t, err, ErrConflict)

	got, err := lm.GetLockInfo(context.Background(), info.Token)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, *refreshed, *got)
}

func TestLockManager_RefreshUnknownOrExpired(t *testing.T) {
	lm, clk := newTestManager(t)

	_, err := lm.Refresh(context.Background(), "opaquelocktoken:missing", time.Minute)
	var invalid *InvalidTokenError
	testutil.AssertErrorAs(t, err, &invalid)
	testutil.AssertErrorIs(t, err, ErrInvalidToken)

	info := mustLock(t, lm, exclusive("/a", false, time.Second))
	clk.Advance(time.Second)

	_, err = lm.Refresh(context.Background(), info.Token, time.Minute)
	testutil.AssertErrorIs(t, err, ErrInvalidToken)
}

func TestLockManager_RefreshBetweenFiniteAndInfinite(t *testing.T) {
	lm, clk := newTestManager(t)
	info := mustLock(t, lm, exclusive("/a", false, time.Second))

	_, err := lm.Refresh(context.Background(), info.Token, types.InfiniteTimeout)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, 0, lm.pendingExpirations())

	clk.Advance(time.Hour)
	got, err := lm.GetLockInfo(context.Background(), info.Token)
	testutil.RequireNoError(t, err)
	testutil.AssertTrue(t, got.IsInfinite())

	_, err = lm.Refresh(context.Background(), info.Token, time.Second)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, 1, lm.pendingExpirations())
}

func TestLockManager_UnlockNotifiesSynchronously(t *testing.T) {
	lm, _ := newTestManager(t)
	rec := &releaseRecorder{}
	lm.Subscribe(rec.handler)

	info := mustLock(t, lm, exclusive("/a", true, time.Minute))
	testutil.RequireNoError(t, lm.Unlock(context.Background(), info.Token))

	events := rec.snapshot()
	testutil.AssertLen(t, events, 1, "notification must be delivered before Unlock returns")
	testutil.AssertEqual(t, info.Token, events[0].info.Token)
	testutil.AssertEqual(t, types.ReleaseExplicit, events[0].reason)

	// Released immediately from conflict consideration.
	mustLock(t, lm, exclusive("/a/b", false, time.Minute))
}

func TestLockManager_DoubleUnlock(t *testing.T) {
	lm, _ := newTestManager(t)
	rec := &releaseRecorder{}
	lm.Subscribe(rec.handler)

	info := mustLock(t, lm, exclusive("/a", false, time.Minute))
	testutil.RequireNoError(t, lm.Unlock(context.Background(), info.Token))

	err := lm.Unlock(context.Background(), info.Token)
	var invalid *InvalidTokenError
	testutil.AssertErrorAs(t, err, &invalid)
	if invalid != nil {
		testutil.AssertEqual(t, info.Token, invalid.Token)
	}
	testutil.AssertEqual(t, 1, rec.countFor(info.Token))
}

func TestLockManager_ExpiredLockNeverConflicts(t *testing.T) {
	lm, clk := newTestManager(t)
	rec := &releaseRecorder{}
	lm.Subscribe(rec.handler)

	old := mustLock(t, lm, exclusive("/a", false, time.Second))
	clk.Advance(time.Second)

	// Whether the sweep or the inline purge wins, the new lock is granted.
	mustLock(t, lm, exclusive("/a", false, time.Minute))

	testutil.Eventually(t, func() bool { return rec.countFor(old.Token) == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	testutil.AssertEqual(t, 1, rec.countFor(old.Token), "expired lock must be notified exactly once")
	testutil.AssertEqual(t, types.ReleaseExpired, rec.snapshot()[0].reason)

	err := lm.Unlock(context.Background(), old.Token)
	testutil.AssertErrorIs(t, err, ErrInvalidToken)
}

func TestLockManager_MaxLocks(t *testing.T) {
	lm, _ := newTestManager(t, WithMaxLocks(2))

	mustLock(t, lm, exclusive("/a", false, time.Minute))
	mustLock(t, lm, exclusive("/b", false, time.Minute))

	_, err := lm.Lock(context.Background(), exclusive("/c", false, time.Minute))
	testutil.AssertErrorIs(t, err, ErrTooManyLocks)
}

func TestLockManager_DuplicateTokenPanics(t *testing.T) {
	lm, _ := newTestManager(t, WithTokenGenerator(func() types.StateToken { return "opaquelocktoken:same" }))
	mustLock(t, lm, exclusive("/a", false, time.Minute))

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate token")
		}
	}()
	_, _ = lm.Lock(context.Background(), exclusive("/b", false, time.Minute))
}

func TestLockManager_SubscribeAndUnsubscribe(t *testing.T) {
	lm, _ := newTestManager(t)

	first := &releaseRecorder{}
	second := &releaseRecorder{}
	unsubscribe := lm.Subscribe(first.handler)
	lm.Subscribe(second.handler)
	lm.Subscribe(func(types.LockInfo, types.ReleaseReason) { panic("handler bug") })

	a := mustLock(t, lm, exclusive("/a", false, time.Minute))
	testutil.RequireNoError(t, lm.Unlock(context.Background(), a.Token))

	unsubscribe()
	unsubscribe()

	b := mustLock(t, lm, exclusive("/b", false, time.Minute))
	testutil.RequireNoError(t, lm.Unlock(context.Background(), b.Token))

	testutil.AssertEqual(t, 1, first.count())
	testutil.AssertEqual(t, 2, second.count())
}

func TestLockManager_GetLockInfo(t *testing.T) {
	lm, clk := newTestManager(t)
	info := mustLock(t, lm, LockRequest{Path: "/a", Owner: "<D:href>alice</D:href>", Access: types.AccessRead, Timeout: time.Minute})

	got, err := lm.GetLockInfo(context.Background(), info.Token)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, "<D:href>alice</D:href>", got.Owner)
	testutil.AssertEqual(t, types.AccessRead, got.Access)

	clk.Advance(time.Minute)
	_, err = lm.GetLockInfo(context.Background(), info.Token)
	testutil.AssertErrorIs(t, err, ErrInvalidToken)
}

func TestLockManager_GetLocks(t *testing.T) {
	lm, clk := newTestManager(t)

	a := mustLock(t, lm, exclusive("/docs/a", false, time.Minute))
	clk.Advance(time.Millisecond)
	b := mustLock(t, lm, shared("/docs/b", false, 10*time.Second))
	clk.Advance(time.Millisecond)
	c := mustLock(t, lm, exclusive("/other", false, time.Minute))

	tests := []struct {
		name      string
		filter    LockFilter
		limit     int
		offset    int
		wantIDs   []types.StateToken
		wantTotal int
	}{
		{"all in issue order", nil, 0, 0, []types.StateToken{a.Token, b.Token, c.Token}, 3},
		{"first page", FilterAll, 2, 0, []types.StateToken{a.Token, b.Token}, 3},
		{"second page", FilterAll, 2, 2, []types.StateToken{c.Token}, 3},
		{"offset past end", FilterAll, 2, 5, []types.StateToken{}, 3},
		{"negative offset", FilterAll, 1, -1, []types.StateToken{a.Token}, 3},
		{"by owner", FilterByOwner("bob"), 0, 0, []types.StateToken{b.Token}, 1},
		{"by prefix", FilterByPathPrefix("/docs"), 0, 0, []types.StateToken{a.Token, b.Token}, 2},
		{"expiring soon", FilterExpiringSoon(clk, 30*time.Second), 0, 0, []types.StateToken{b.Token}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locks, total, err := lm.GetLocks(context.Background(), tt.filter, tt.limit, tt.offset)
			testutil.RequireNoError(t, err)
			testutil.AssertEqual(t, tt.wantTotal, total)

			got := make([]types.StateToken, 0, len(locks))
			for _, l := range locks {
				got = append(got, l.Token)
			}
			testutil.AssertEqual(t, tt.wantIDs, got)
		})
	}
}

func TestLockManager_Close(t *testing.T) {
	lm, clk := newTestManager(t)
	rec := &releaseRecorder{}
	lm.Subscribe(rec.handler)

	info := mustLock(t, lm, exclusive("/a", false, time.Second))
	testutil.RequireNoError(t, lm.Close())
	testutil.RequireNoError(t, lm.Close(), "Close must be idempotent")

	clk.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	testutil.AssertEqual(t, 0, rec.count(), "abandoned locks are not notified")

	_, err := lm.Lock(context.Background(), exclusive("/b", false, time.Second))
	testutil.AssertErrorIs(t, err, ErrManagerClosed)
	testutil.AssertErrorIs(t, lm.Unlock(context.Background(), info.Token), ErrManagerClosed)
	_, err = lm.Refresh(context.Background(), info.Token, time.Second)
	testutil.AssertErrorIs(t, err, ErrManagerClosed)
	testutil.AssertErrorIs(t, lm.Confirm(context.Background(), ConfirmRequest{Path: "/a"}), ErrManagerClosed)
}

func TestLockManager_ConcurrentExclusiveLock(t *testing.T) {
	lm := NewLockManager()
	defer lm.Close()

	const workers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := lm.Lock(context.Background(), exclusive("/contended", true, time.Minute)); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			} else if !errors.Is(err, ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	testutil.AssertEqual(t, 1, granted)
}

func TestLockManager_StoreMirror(t *testing.T) {
	store := newMemoryStore()
	lm, _ := newTestManager(t, WithStore(store))
	ctx := context.Background()

	info := mustLock(t, lm, exclusive("/a", false, time.Minute))
	testutil.RequireNoError(t, lm.journal.sync(ctx))
	testutil.AssertTrue(t, store.has(info.Token))

	refreshed, err := lm.Refresh(ctx, info.Token, time.Hour)
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, lm.journal.sync(ctx))
	testutil.AssertEqual(t, refreshed.ExpiresAt, store.row(info.Token).ExpiresAt)

	testutil.RequireNoError(t, lm.Unlock(ctx, info.Token))
	testutil.RequireNoError(t, lm.journal.sync(ctx))
	testutil.AssertFalse(t, store.has(info.Token))
}

func TestLockManager_SlowStoreDoesNotBlockLocking(t *testing.T) {
	store := newMemoryStore()
	store.gate = make(chan struct{})
	lm, _ := newTestManager(t, WithStore(store))
	open := sync.OnceFunc(func() { close(store.gate) })
	t.Cleanup(open)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		a, err := lm.Lock(ctx, exclusive("/a", false, time.Minute))
		if err == nil {
			_, err = lm.Lock(ctx, exclusive("/b", false, time.Minute))
		}
		if err == nil {
			err = lm.Unlock(ctx, a.Token)
		}
		done <- err
	}()

	select {
	case err := <-done:
		testutil.RequireNoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lock operations waited on the store")
	}

	open()
	testutil.RequireNoError(t, lm.journal.sync(ctx))
	testutil.AssertEqual(t, 1, store.len(), "only /b remains persisted")
}

func TestLockManager_StoreFailureKeepsTableAuthoritative(t *testing.T) {
	store := newMemoryStore()
	store.saveErr = errStoreDown
	var failures atomic.Int32
	log := &logger.NoOpLogger{ErrorwFunc: func(string, ...any) { failures.Add(1) }}
	lm, _ := newTestManager(t, WithStore(store), WithLogger(log))
	ctx := context.Background()

	info := mustLock(t, lm, exclusive("/a", false, time.Minute))
	_, err := lm.Lock(ctx, exclusive("/a", false, time.Minute))
	testutil.AssertErrorIs(t, err, ErrConflict)

	testutil.RequireNoError(t, lm.journal.sync(ctx))
	testutil.AssertFalse(t, store.has(info.Token))
	testutil.AssertEqual(t, int32(1), failures.Load())
}

func TestLockManager_StoreDeleteFailureIsLogged(t *testing.T) {
	store := newMemoryStore()
	store.deleteErr = errStoreDown
	lm, _ := newTestManager(t, WithStore(store))

	info := mustLock(t, lm, exclusive("/a", false, time.Minute))
	testutil.AssertNoError(t, lm.Unlock(context.Background(), info.Token))

	_, err := lm.GetLockInfo(context.Background(), info.Token)
	testutil.AssertErrorIs(t, err, ErrInvalidToken)
}

func TestLockManager_CloseFlushesStore(t *testing.T) {
	store := newMemoryStore()
	lm := NewLockManager(WithStore(store))

	info, err := lm.Lock(context.Background(), exclusive("/a", false, time.Minute))
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, lm.Close())
	testutil.AssertTrue(t, store.has(info.Token))
}

func TestLockManager_EphemeralLocks(t *testing.T) {
	store := newMemoryStore()
	metrics := &countingMetrics{}
	lm, _ := newTestManager(t, WithStore(store), WithMetrics(metrics))
	rec := &releaseRecorder{}
	lm.Subscribe(rec.handler)
	ctx := context.Background()

	req := exclusive("/x.txt", false, types.InfiniteTimeout)
	req.Ephemeral = true
	tmp := mustLock(t, lm, req)

	t.Run("still conflicts", func(t *testing.T) {
		_, err := lm.Lock(ctx, exclusive("/x.txt", false, time.Minute))
		testutil.AssertErrorIs(t, err, ErrConflict)
		testutil.AssertErrorIs(t, lm.Confirm(ctx, ConfirmRequest{Path: "/x.txt"}), ErrConflict)
		testutil.AssertNoError(t, lm.Confirm(ctx, ConfirmRequest{Path: "/x.txt", Tokens: []types.StateToken{tmp.Token}}))
	})

	t.Run("hidden from listings", func(t *testing.T) {
		locks, total, err := lm.GetLocks(ctx, FilterAll, 0, 0)
		testutil.RequireNoError(t, err)
		testutil.AssertEqual(t, 0, total)
		testutil.AssertLen(t, locks, 0)
	})

	testutil.RequireNoError(t, lm.Unlock(ctx, tmp.Token))
	testutil.RequireNoError(t, lm.journal.sync(ctx))

	testutil.AssertEqual(t, 0, rec.count(), "no release notification")
	testutil.AssertEqual(t, 0, store.saves(), "never persisted")
	testutil.AssertLen(t, store.deletedTokens(), 0)
	granted, _, _, unlocked, active := metrics.get()
	testutil.AssertEqual(t, 0, granted)
	testutil.AssertEqual(t, 0, unlocked)
	testutil.AssertEqual(t, 0, active)

	t.Run("crash leaves nothing to recover", func(t *testing.T) {
		req := exclusive("/y.txt", false, types.InfiniteTimeout)
		req.Ephemeral = true
		mustLock(t, lm, req)

		next, _ := newTestManager(t, WithStore(store))
		n, err := next.Recover(ctx)
		testutil.RequireNoError(t, err)
		testutil.AssertEqual(t, 0, n)
		mustLock(t, next, exclusive("/y.txt", false, time.Minute))
	})
}

func TestLockManager_Recover(t *testing.T) {
	store := newMemoryStore()
	_ = store.Save(context.Background(), types.LockInfo{
		Token: "opaquelocktoken:live", Path: "/a", Share: types.ShareExclusive,
		Timeout: time.Minute, IssuedAt: testEpoch.Add(-10 * time.Second), ExpiresAt: testEpoch.Add(50 * time.Second),
	})
	_ = store.Save(context.Background(), types.LockInfo{
		Token: "opaquelocktoken:forever", Path: "/b", Share: types.ShareShared,
		Timeout: types.InfiniteTimeout, IssuedAt: testEpoch.Add(-time.Hour),
	})
	_ = store.Save(context.Background(), types.LockInfo{
		Token: "opaquelocktoken:stale", Path: "/c", Share: types.ShareExclusive,
		Timeout: time.Second, IssuedAt: testEpoch.Add(-time.Minute), ExpiresAt: testEpoch.Add(-59 * time.Second),
	})

	lm, _ := newTestManager(t, WithStore(store))
	restored, err := lm.Recover(context.Background())
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, 2, restored)

	_, err = lm.Lock(context.Background(), exclusive("/a", false, time.Minute))
	testutil.AssertErrorIs(t, err, ErrConflict)
	mustLock(t, lm, exclusive("/c", false, time.Minute))

	testutil.RequireNoError(t, lm.journal.sync(context.Background()))
	testutil.AssertFalse(t, store.has("opaquelocktoken:stale"))
	testutil.AssertEqual(t, testEpoch.Add(50*time.Second), lm.nextWakeup())
}

func TestLockManager_RecoverPrunesExpiredRows(t *testing.T) {
	store := &pruningStore{memoryStore: newMemoryStore()}
	_ = store.Save(context.Background(), types.LockInfo{
		Token: "opaquelocktoken:old", Path: "/a", Share: types.ShareExclusive,
		Timeout: time.Second, IssuedAt: testEpoch.Add(-time.Minute), ExpiresAt: testEpoch.Add(-59 * time.Second),
	})

	lm, _ := newTestManager(t, WithStore(store))
	n, err := lm.Recover(context.Background())
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, 0, n)
	testutil.AssertEqual(t, testEpoch, store.prunedAt)
	testutil.AssertFalse(t, store.has("opaquelocktoken:old"))

	store.pruneErr = errStoreDown
	_, err = lm.Recover(context.Background())
	testutil.AssertErrorIs(t, err, errStoreDown)
}

func TestLockManager_RecoverLoadFailure(t *testing.T) {
	store := newMemoryStore()
	store.loadErr = errStoreDown
	lm, _ := newTestManager(t, WithStore(store))

	_, err := lm.Recover(context.Background())
	testutil.AssertErrorIs(t, err, errStoreDown)
}

func TestLockManager_RecoverWithoutStore(t *testing.T) {
	lm, _ := newTestManager(t)
	n, err := lm.Recover(context.Background())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, 0, n)
}
