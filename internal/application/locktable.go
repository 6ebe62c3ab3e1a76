// Package application contains the use-case services: account registry,
// sync orchestration, connection testing and scheduling.
package application

import (
	"sync"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

// LockTable hands out one mutex per key. Entries are reference counted and
// removed once nobody holds or waits on them, so the table does not grow
// with the number of keys ever seen.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]*lockEntry)}
}

// Lock blocks until key is held and returns the release function.
func (t *LockTable) Lock(key string) (unlock func()) {
	t.mu.Lock()
	e := t.entry(key)
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return func() { t.release(key, e) }
}

// TryLock acquires key only if it is free.
func (t *LockTable) TryLock(key string) (unlock func(), ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(key)
	if !e.mu.TryLock() {
		return nil, false
	}
	e.refs++
	return func() { t.release(key, e) }, true
}

// Held reports whether key is currently locked or waited on.
func (t *LockTable) Held(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.locks[key]
	return ok && e.refs > 0
}

func (t *LockTable) entry(key string) *lockEntry {
	e, ok := t.locks[key]
	if !ok {
		e = &lockEntry{}
		t.locks[key] = e
	}
	return e
}

func (t *LockTable) release(key string, e *lockEntry) {
	e.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(t.locks, key)
	}
}

// pairKey identifies an (account, service kind) reconciliation pair.
func pairKey(accountID string, kind model.ServiceKind) string {
	return accountID + "\x00" + string(kind)
}
