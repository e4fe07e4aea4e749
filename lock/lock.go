package lock

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jathurchan/davlock/clock"
	"github.com/jathurchan/davlock/logger"
	"github.com/jathurchan/davlock/types"
)

// lockEntry is the manager's private record of an active lock.
type lockEntry struct {
	info types.LockInfo

	// grantedAt is the original issuance time; info.IssuedAt moves on refresh.
	grantedAt time.Time

	// expiry is the entry's heap item, nil for infinite locks.
	expiry *expirationItem

	ephemeral bool
}

type subscriber struct {
	id      uint64
	handler ReleaseHandler
}

// lockManager provides a concrete implementation of the LockManager interface.
type lockManager struct {
	mu sync.Mutex // Protects locks, expirations, wakeAt and closed.

	locks       map[types.StateToken]*lockEntry
	expirations *expirationHeap
	ephemeral   int // entries in locks with ephemeral set

	// wakeAt is the instant the reclamation loop should next sweep. Zero while idle.
	wakeAt time.Time
	closed bool

	subMu       sync.RWMutex
	subscribers []subscriber
	nextSubID   uint64

	wakeCh chan struct{} // Buffered (1); interrupts the loop's wait.
	stopCh chan struct{}
	doneCh chan struct{}

	config   LockManagerConfig
	clock    clock.Clock
	logger   logger.Logger
	metrics  Metrics
	store    Store
	journal  *journal // nil without a store
	newToken TokenGenerator
}

// NewLockManager creates a lock manager and starts its reclamation loop.
// Call Close to stop the loop.
func NewLockManager(opts ...LockManagerOption) LockManager {
	config := DefaultLockManagerConfig()
	for _, opt := range opts {
		opt(&config)
	}

	if config.MaxTimeout < config.DefaultTimeout {
		config.MaxTimeout = config.DefaultTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.NewStandardClock()
	}
	if config.Logger == nil {
		config.Logger = logger.NewNoOpLogger()
	}
	if config.Metrics == nil {
		config.Metrics = NoOpMetrics{}
	}
	if config.TokenGenerator == nil {
		config.TokenGenerator = NewStateToken
	}

	lm := &lockManager{
		locks:       make(map[types.StateToken]*lockEntry),
		expirations: &expirationHeap{},
		wakeCh:      make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		config:      config,
		clock:       config.Clock,
		logger:      config.Logger.WithComponent("lock"),
		metrics:     config.Metrics,
		store:       config.Store,
		newToken:    config.TokenGenerator,
	}
	if lm.store != nil {
		lm.journal = newJournal(lm.store, lm.logger.WithComponent("journal"))
	}

	go lm.run()
	return lm
}

// Lock grants a new lock on req.Path unless it conflicts with an active lock.
func (lm *lockManager) Lock(ctx context.Context, req LockRequest) (*types.LockInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	count := func(success, conflict bool) {
		if !req.Ephemeral {
			lm.metrics.IncrLockRequest(req.Share, success, conflict)
		}
	}
	if err := validateLockRequest(req); err != nil {
		count(false, false)
		return nil, err
	}
	timeout, err := lm.normalizeTimeout(req.Timeout)
	if err != nil {
		count(false, false)
		return nil, err
	}
	path := types.CleanPath(req.Path)
	log := lm.logger.WithPath(path)

	lm.mu.Lock()
	if lm.closed {
		lm.mu.Unlock()
		return nil, ErrManagerClosed
	}

	now := lm.clock.Now()
	expired := lm.purgeExpiredLocked(now)

	if conflicts := lm.conflictsLocked(path, req.Recursive, req.Share); len(conflicts) > 0 {
		lm.mu.Unlock()
		lm.release(ctx, expired, types.ReleaseExpired)
		count(false, true)
		log.Debugw("lock request conflicts", "share", req.Share, "recursive", req.Recursive, "conflicts", len(conflicts))
		return nil, &ConflictError{Path: path, Tokens: conflicts}
	}

	if len(lm.locks) >= lm.config.MaxLocks {
		lm.mu.Unlock()
		lm.release(ctx, expired, types.ReleaseExpired)
		count(false, false)
		log.Warnw("lock table full", "maxLocks", lm.config.MaxLocks)
		return nil, ErrTooManyLocks
	}

	info := types.LockInfo{
		Token:     lm.newToken(),
		Path:      path,
		Recursive: req.Recursive,
		Owner:     req.Owner,
		Access:    req.Access,
		Share:     req.Share,
		Timeout:   timeout,
		IssuedAt:  now,
		ExpiresAt: expiryFor(now, timeout),
	}
	if _, dup := lm.locks[info.Token]; dup {
		lm.mu.Unlock()
		panic(fmt.Sprintf("lockmanager: duplicate state token %s", info.Token))
	}

	lm.insertLocked(&lockEntry{info: info, grantedAt: now, ephemeral: req.Ephemeral})
	if lm.journal != nil && !req.Ephemeral {
		lm.journal.save(info)
	}
	active := lm.activeLocked()
	lm.mu.Unlock()

	lm.release(ctx, expired, types.ReleaseExpired)
	count(true, false)
	lm.metrics.SetActiveLocks(active)
	log.Debugw("lock granted",
		"token", info.Token,
		"access", info.Access,
		"share", info.Share,
		"recursive", info.Recursive,
		"timeout", info.Timeout,
		"ephemeral", req.Ephemeral,
	)
	return &info, nil
}

// Refresh restarts an active lock's timeout from the current time.
func (lm *lockManager) Refresh(ctx context.Context, token types.StateToken, timeout time.Duration) (*types.LockInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout, err := lm.normalizeTimeout(timeout)
	if err != nil {
		lm.metrics.IncrRefreshRequest(false)
		return nil, err
	}

	lm.mu.Lock()
	if lm.closed {
		lm.mu.Unlock()
		return nil, ErrManagerClosed
	}

	now := lm.clock.Now()
	expired := lm.purgeExpiredLocked(now)

	e, ok := lm.locks[token]
	if !ok {
		lm.mu.Unlock()
		lm.release(ctx, expired, types.ReleaseExpired)
		lm.metrics.IncrRefreshRequest(false)
		return nil, &InvalidTokenError{Token: token}
	}

	next := e.info
	next.Timeout = timeout
	next.IssuedAt = now
	next.ExpiresAt = expiryFor(now, timeout)

	lm.setExpiryLocked(e, next)
	lm.rescheduleLocked()
	if lm.journal != nil && !e.ephemeral {
		lm.journal.save(next)
	}
	lm.mu.Unlock()

	lm.release(ctx, expired, types.ReleaseExpired)
	lm.metrics.IncrRefreshRequest(true)
	lm.logger.WithPath(next.Path).Debugw("lock refreshed", "token", token, "timeout", timeout)
	return &next, nil
}

// Unlock removes an active lock and notifies subscribers before returning.
func (lm *lockManager) Unlock(ctx context.Context, token types.StateToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lm.mu.Lock()
	if lm.closed {
		lm.mu.Unlock()
		return ErrManagerClosed
	}

	now := lm.clock.Now()
	expired := lm.purgeExpiredLocked(now)

	e, ok := lm.locks[token]
	if !ok {
		lm.mu.Unlock()
		lm.release(ctx, expired, types.ReleaseExpired)
		lm.metrics.IncrUnlockRequest(false)
		return &InvalidTokenError{Token: token}
	}

	lm.removeLocked(e)
	lm.rescheduleLocked()
	active := lm.activeLocked()
	lm.mu.Unlock()

	lm.release(ctx, expired, types.ReleaseExpired)
	lm.release(ctx, []*lockEntry{e}, types.ReleaseExplicit)
	if !e.ephemeral {
		lm.metrics.IncrUnlockRequest(true)
	}
	lm.metrics.SetActiveLocks(active)
	return nil
}

// Subscribe registers a release handler.
func (lm *lockManager) Subscribe(handler ReleaseHandler) func() {
	if handler == nil {
		return func() {}
	}

	lm.subMu.Lock()
	lm.nextSubID++
	id := lm.nextSubID
	lm.subscribers = append(lm.subscribers, subscriber{id: id, handler: handler})
	lm.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			lm.subMu.Lock()
			defer lm.subMu.Unlock()
			lm.subscribers = slices.DeleteFunc(lm.subscribers, func(s subscriber) bool {
				return s.id == id
			})
		})
	}
}

// Confirm checks the tokens presented for a mutation of req.Path.
//
// Every presented token must name an active lock overlapping a target.
// Every exclusive write lock overlapping a target must be presented.
// A shared write lock is satisfied when any presented write lock overlaps it.
// Read locks never gate mutations.
func (lm *lockManager) Confirm(ctx context.Context, req ConfirmRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Path == "" {
		lm.metrics.IncrConfirm(false)
		return ErrInvalidPath
	}
	targets := []string{types.CleanPath(req.Path)}
	if req.Destination != "" {
		targets = append(targets, types.CleanPath(req.Destination))
	}

	lm.mu.Lock()
	if lm.closed {
		lm.mu.Unlock()
		return ErrManagerClosed
	}

	expired := lm.purgeExpiredLocked(lm.clock.Now())
	err := lm.confirmLocked(targets, req.Recursive, req.Tokens)
	lm.mu.Unlock()

	lm.release(ctx, expired, types.ReleaseExpired)
	lm.metrics.IncrConfirm(err == nil)
	if err != nil {
		lm.logger.WithPath(targets[0]).Debugw("mutation rejected", "error", err)
	}
	return err
}

func (lm *lockManager) confirmLocked(targets []string, recursive bool, tokens []types.StateToken) error {
	guards := func(e *lockEntry) bool {
		for _, path := range targets {
			if types.PathsOverlap(e.info.Path, e.info.Recursive, path, recursive) {
				return true
			}
		}
		return false
	}

	presented := make([]*lockEntry, 0, len(tokens))
	for _, token := range tokens {
		e, ok := lm.locks[token]
		if !ok || !guards(e) {
			return &InvalidTokenError{Token: token}
		}
		if e.info.Access == types.AccessWrite {
			presented = append(presented, e)
		}
	}

	var missing []types.StateToken
	for token, e := range lm.locks {
		if e.info.Access != types.AccessWrite || !guards(e) {
			continue
		}
		if slices.Contains(tokens, token) {
			continue
		}
		if e.info.Share == types.ShareShared && sharesWith(e, presented) {
			continue
		}
		missing = append(missing, token)
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return &ConflictError{Path: targets[0], Tokens: missing}
	}
	return nil
}

// sharesWith reports whether any presented write lock overlaps the shared lock e.
func sharesWith(e *lockEntry, presented []*lockEntry) bool {
	for _, p := range presented {
		if types.PathsOverlap(p.info.Path, p.info.Recursive, e.info.Path, e.info.Recursive) {
			return true
		}
	}
	return false
}

// GetLockInfo returns a snapshot of an active lock.
func (lm *lockManager) GetLockInfo(ctx context.Context, token types.StateToken) (*types.LockInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.closed {
		return nil, ErrManagerClosed
	}
	e, ok := lm.locks[token]
	if !ok || !e.info.IsActive(lm.clock.Now()) {
		return nil, &InvalidTokenError{Token: token}
	}
	info := e.info
	return &info, nil
}

// GetLocks returns a page of active locks matching filter.
func (lm *lockManager) GetLocks(ctx context.Context, filter LockFilter, limit int, offset int) ([]*types.LockInfo, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if filter == nil {
		filter = FilterAll
	}

	lm.mu.Lock()
	if lm.closed {
		lm.mu.Unlock()
		return nil, 0, ErrManagerClosed
	}
	now := lm.clock.Now()
	snapshot := make([]*types.LockInfo, 0, len(lm.locks))
	for _, e := range lm.locks {
		if e.ephemeral || !e.info.IsActive(now) {
			continue
		}
		info := e.info
		snapshot = append(snapshot, &info)
	}
	lm.mu.Unlock()

	matched := snapshot[:0]
	for _, info := range snapshot {
		if filter(info) {
			matched = append(matched, info)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].IssuedAt.Equal(matched[j].IssuedAt) {
			return matched[i].IssuedAt.Before(matched[j].IssuedAt)
		}
		return matched[i].Token < matched[j].Token
	})

	total := len(matched)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*types.LockInfo{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

// Recover replays the persisted lock table into memory.
// Rows that already expired, or that conflict with locks granted earlier in
// the replay, are deleted from the store instead.
func (lm *lockManager) Recover(ctx context.Context) (int, error) {
	if lm.store == nil {
		return 0, nil
	}

	if p, ok := lm.store.(ExpiredPruner); ok {
		n, err := p.DeleteExpired(ctx, lm.clock.Now())
		if err != nil {
			return 0, fmt.Errorf("lockmanager: prune persisted locks: %w", err)
		}
		if n > 0 {
			lm.logger.Infow("pruned expired persisted locks", "count", n)
		}
	}

	rows, err := lm.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("lockmanager: load persisted locks: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].IssuedAt.Before(rows[j].IssuedAt) })

	lm.mu.Lock()
	if lm.closed {
		lm.mu.Unlock()
		return 0, ErrManagerClosed
	}

	now := lm.clock.Now()
	var stale []types.StateToken
	restored := 0
	for _, info := range rows {
		info.Path = types.CleanPath(info.Path)
		if !info.IsActive(now) {
			stale = append(stale, info.Token)
			continue
		}
		if _, dup := lm.locks[info.Token]; dup {
			lm.mu.Unlock()
			panic(fmt.Sprintf("lockmanager: recovered token %s is already active", info.Token))
		}
		if conflicts := lm.conflictsLocked(info.Path, info.Recursive, info.Share); len(conflicts) > 0 {
			lm.logger.WithPath(info.Path).Warnw("dropping persisted lock that conflicts with a recovered lock",
				"token", info.Token, "conflicts", conflicts)
			stale = append(stale, info.Token)
			continue
		}
		lm.insertLocked(&lockEntry{info: info, grantedAt: info.IssuedAt})
		restored++
	}
	for _, token := range stale {
		lm.journal.delete(token)
	}
	active := lm.activeLocked()
	lm.mu.Unlock()

	lm.metrics.SetActiveLocks(active)
	lm.logger.Infow("recovered persisted locks", "restored", restored, "discarded", len(stale))
	return restored, nil
}

// Close stops the reclamation loop and waits for it and for pending store
// writes to finish.
func (lm *lockManager) Close() error {
	lm.mu.Lock()
	if lm.closed {
		lm.mu.Unlock()
		return nil
	}
	lm.closed = true
	abandoned := len(lm.locks)
	close(lm.stopCh)
	lm.mu.Unlock()

	<-lm.doneCh
	if lm.journal != nil {
		lm.journal.close()
	}
	lm.logger.Infow("lock manager closed", "abandonedLocks", abandoned)
	return nil
}

func validateLockRequest(req LockRequest) error {
	if req.Path == "" {
		return ErrInvalidPath
	}
	if !req.Access.IsValid() {
		return ErrInvalidAccessType
	}
	if !req.Share.IsValid() {
		return ErrInvalidShareMode
	}
	return nil
}

// normalizeTimeout applies the default for zero and caps finite timeouts at MaxTimeout.
func (lm *lockManager) normalizeTimeout(timeout time.Duration) (time.Duration, error) {
	switch {
	case timeout == types.InfiniteTimeout:
		return timeout, nil
	case timeout == 0:
		return lm.config.DefaultTimeout, nil
	case timeout < 0:
		return 0, fmt.Errorf("%w: %v", ErrInvalidTimeout, timeout)
	case timeout > lm.config.MaxTimeout:
		return lm.config.MaxTimeout, nil
	default:
		return timeout, nil
	}
}

func expiryFor(now time.Time, timeout time.Duration) time.Time {
	if timeout == types.InfiniteTimeout {
		return time.Time{}
	}
	return now.Add(timeout)
}

// conflictsLocked returns the tokens of active locks incompatible with a
// candidate lock, sorted for stable output.
func (lm *lockManager) conflictsLocked(path string, recursive bool, share types.ShareMode) []types.StateToken {
	var tokens []types.StateToken
	for token, e := range lm.locks {
		if share == types.ShareShared && e.info.Share == types.ShareShared {
			continue
		}
		if types.PathsOverlap(e.info.Path, e.info.Recursive, path, recursive) {
			tokens = append(tokens, token)
		}
	}
	slices.Sort(tokens)
	return tokens
}

func (lm *lockManager) insertLocked(e *lockEntry) {
	if !e.info.IsInfinite() {
		e.expiry = lm.expirations.track(e.info.Token, e.info.ExpiresAt)
	}
	lm.locks[e.info.Token] = e
	if e.ephemeral {
		lm.ephemeral++
	}
	lm.rescheduleLocked()
}

// removeLocked drops e from the table and queues its store deletion.
func (lm *lockManager) removeLocked(e *lockEntry) {
	delete(lm.locks, e.info.Token)
	lm.expirations.untrack(e.expiry)
	e.expiry = nil
	if e.ephemeral {
		lm.ephemeral--
	} else if lm.journal != nil {
		lm.journal.delete(e.info.Token)
	}
}

// activeLocked is the lock count reported to metrics.
func (lm *lockManager) activeLocked() int {
	return len(lm.locks) - lm.ephemeral
}

// setExpiryLocked replaces e's snapshot and keeps the heap in step with it.
func (lm *lockManager) setExpiryLocked(e *lockEntry, info types.LockInfo) {
	e.info = info
	switch {
	case info.IsInfinite():
		lm.expirations.untrack(e.expiry)
		e.expiry = nil
	case e.expiry == nil:
		e.expiry = lm.expirations.track(info.Token, info.ExpiresAt)
	default:
		lm.expirations.reschedule(e.expiry, info.ExpiresAt)
	}
}

// purgeExpiredLocked removes every lock with ExpiresAt <= now and returns them
// in expiry order. Callers deliver the notifications after unlocking.
func (lm *lockManager) purgeExpiredLocked(now time.Time) []*lockEntry {
	var expired []*lockEntry
	for {
		item := lm.expirations.peek()
		if item == nil || item.expiresAt.After(now) {
			break
		}
		e, ok := lm.locks[item.token]
		if !ok {
			panic(fmt.Sprintf("lockmanager: expiration heap tracks unknown token %s", item.token))
		}
		lm.removeLocked(e)
		expired = append(expired, e)
	}
	if len(expired) > 0 {
		lm.rescheduleLocked()
	}
	return expired
}

// release finishes removal of entries that already left the table:
// metrics, logging and subscriber notification. Ephemeral entries leave
// silently.
func (lm *lockManager) release(_ context.Context, entries []*lockEntry, reason types.ReleaseReason) {
	if len(entries) == 0 {
		return
	}
	now := lm.clock.Now()
	for _, e := range entries {
		if e.ephemeral {
			continue
		}
		if reason == types.ReleaseExpired {
			lm.metrics.IncrExpiredLock()
		}
		lm.metrics.ObserveLockHoldDuration(now.Sub(e.grantedAt), reason)
		lm.logger.WithPath(e.info.Path).Debugw("lock released", "token", e.info.Token, "reason", reason)
		lm.notify(e.info, reason)
	}
}

func (lm *lockManager) notify(info types.LockInfo, reason types.ReleaseReason) {
	lm.subMu.RLock()
	subs := slices.Clone(lm.subscribers)
	lm.subMu.RUnlock()

	for _, s := range subs {
		lm.invoke(s.handler, info, reason)
	}
}

func (lm *lockManager) invoke(handler ReleaseHandler, info types.LockInfo, reason types.ReleaseReason) {
	defer func() {
		if r := recover(); r != nil {
			lm.logger.Errorw("release handler panicked", "token", info.Token, "panic", r)
		}
	}()
	handler(info, reason)
}
