package lock

import (
	"context"
	"sync"

	"github.com/jathurchan/davlock/logger"
	"github.com/jathurchan/davlock/types"
)

// journalEntry is one queued Store write. Save when deleted is false.
type journalEntry struct {
	info    types.LockInfo
	token   types.StateToken
	deleted bool
}

// journal applies Store writes on its own goroutine, in the order they were
// queued. The manager queues while holding its mutex, so the store sees
// changes in table order while Lock, Refresh and Unlock never wait on it.
//
// Failed writes are logged and dropped. The in-memory table stays
// authoritative; at worst a restart recovers a released lock until it
// expires, or forgets a granted one.
type journal struct {
	store  Store
	logger logger.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []journalEntry
	queued  uint64
	applied uint64
	closed  bool

	done chan struct{}
}

func newJournal(store Store, log logger.Logger) *journal {
	j := &journal{
		store:  store,
		logger: log,
		done:   make(chan struct{}),
	}
	j.cond = sync.NewCond(&j.mu)
	go j.run()
	return j
}

func (j *journal) save(info types.LockInfo) {
	j.push(journalEntry{info: info, token: info.Token})
}

func (j *journal) delete(token types.StateToken) {
	j.push(journalEntry{token: token, deleted: true})
}

func (j *journal) push(e journalEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		j.logger.Warnw("store write after close dropped", "token", e.token, "delete", e.deleted)
		return
	}
	j.pending = append(j.pending, e)
	j.queued++
	j.cond.Broadcast()
}

func (j *journal) run() {
	defer close(j.done)
	ctx := context.Background()

	for {
		j.mu.Lock()
		for len(j.pending) == 0 && !j.closed {
			j.cond.Wait()
		}
		batch := j.pending
		j.pending = nil
		j.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			j.apply(ctx, e)
		}

		j.mu.Lock()
		j.applied += uint64(len(batch))
		j.cond.Broadcast()
		j.mu.Unlock()
	}
}

func (j *journal) apply(ctx context.Context, e journalEntry) {
	if e.deleted {
		if err := j.store.Delete(ctx, e.token); err != nil {
			j.logger.Warnw("failed to delete persisted lock", "token", e.token, "error", err)
		}
		return
	}
	if err := j.store.Save(ctx, e.info); err != nil {
		j.logger.Errorw("failed to persist lock", "token", e.token, "error", err)
	}
}

// sync waits until every entry queued before the call has been applied.
func (j *journal) sync(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		j.mu.Lock()
		j.cond.Broadcast()
		j.mu.Unlock()
	})
	defer stop()

	j.mu.Lock()
	defer j.mu.Unlock()
	target := j.queued
	for j.applied < target {
		if err := ctx.Err(); err != nil {
			return err
		}
		j.cond.Wait()
	}
	return nil
}

// close applies what is queued and stops the writer.
func (j *journal) close() {
	j.mu.Lock()
	j.closed = true
	j.cond.Broadcast()
	j.mu.Unlock()
	<-j.done
}
