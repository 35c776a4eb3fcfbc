// Package txn implements shadow-page transactions: writes made while a
// transaction is active go into in-memory copies of the affected pages
// and only overwrite the pager's real cache — followed by an fsync — at
// commit. Rollback just discards the copies, leaving the pager
// untouched. Outside a transaction, every call passes straight through
// to the pager (implicit single-statement autocommit, enforced by the
// executor wrapping each statement in Begin/Commit).
package txn

import (
	"btreedb/internal/dberr"
	"btreedb/internal/dblog"
	"btreedb/internal/pager"
)

// Manager is the single-writer transaction coordinator bound to one
// Pager. It satisfies btree.Accessor.
type Manager struct {
	pager *pager.Pager

	active    bool
	shadow    map[uint32]*pager.Page
	allocated map[uint32]struct{}
	freed     map[uint32]struct{}
}

// NewManager binds a Manager to p.
func NewManager(p *pager.Pager) *Manager {
	return &Manager{pager: p}
}

// Active reports whether a transaction is currently open.
func (m *Manager) Active() bool { return m.active }

// Begin opens a transaction. Nested transactions are rejected — the
// spec is single-writer, single-level.
func (m *Manager) Begin() error {
	if m.active {
		return dberr.New(dberr.TransactionAlreadyActive, "a transaction is already active")
	}
	m.active = true
	m.shadow = make(map[uint32]*pager.Page)
	m.allocated = make(map[uint32]struct{})
	m.freed = make(map[uint32]struct{})
	dblog.L().Debugw("transaction begin")
	return nil
}

// PageForRead returns the shadow copy of n if one exists in the active
// transaction, else the pager's live page.
func (m *Manager) PageForRead(n uint32) (*pager.Page, error) {
	if m.active {
		if sp, ok := m.shadow[n]; ok {
			return sp, nil
		}
	}
	return m.pager.Get(n)
}

// PageForWrite returns a page safe to mutate. Outside a transaction
// that's the pager's own cached page; inside one it is a private copy
// that only reaches the pager on Commit.
func (m *Manager) PageForWrite(n uint32) (*pager.Page, error) {
	if !m.active {
		return m.pager.Get(n)
	}
	if sp, ok := m.shadow[n]; ok {
		return sp, nil
	}
	orig, err := m.pager.Get(n)
	if err != nil {
		return nil, err
	}
	cp := &pager.Page{PageNum: n, Data: orig.Data, Dirty: true}
	m.shadow[n] = cp
	return cp, nil
}

// Allocate hands out a fresh page number, tracked for rollback if a
// transaction is active.
func (m *Manager) Allocate() (uint32, error) {
	n, err := m.pager.Allocate()
	if err != nil {
		return 0, err
	}
	if m.active {
		m.allocated[n] = struct{}{}
	}
	return n, nil
}

// Free releases a page. Inside a transaction the release is deferred
// until Commit, since Rollback must leave the page's pre-transaction
// contents reachable.
func (m *Manager) Free(n uint32) {
	if m.active {
		delete(m.shadow, n)
		m.freed[n] = struct{}{}
		return
	}
	m.pager.Free(n)
}

// NumPages delegates to the pager.
func (m *Manager) NumPages() uint32 { return m.pager.NumPages() }

// Commit applies every shadow page to the pager's cache, flushes each
// one, frees any pages released during the transaction, and fsyncs.
func (m *Manager) Commit() error {
	if !m.active {
		return dberr.New(dberr.NoActiveTransaction, "no active transaction to commit")
	}
	for n, sp := range m.shadow {
		real, err := m.pager.Get(n)
		if err != nil {
			return err
		}
		real.Data = sp.Data
		real.Dirty = true
		if err := m.pager.Flush(n); err != nil {
			return err
		}
	}
	for n := range m.freed {
		m.pager.Free(n)
	}
	pageCount := len(m.shadow)
	if err := m.pager.Sync(); err != nil {
		return err
	}
	m.clear()
	dblog.L().Infow("transaction commit", "pages_written", pageCount)
	return nil
}

// Rollback discards every shadow page and returns any newly allocated
// pages to the freelist. Pages released during the transaction are left
// alone — their pre-transaction contents are still live in the pager.
func (m *Manager) Rollback() error {
	if !m.active {
		return dberr.New(dberr.NoActiveTransaction, "no active transaction to roll back")
	}
	for n := range m.allocated {
		m.pager.Free(n)
	}
	m.clear()
	dblog.L().Debugw("transaction rollback")
	return nil
}

func (m *Manager) clear() {
	m.active = false
	m.shadow = nil
	m.allocated = nil
	m.freed = nil
}

// CloseForced commits a transaction left open at shutdown rather than
// silently discarding it, and logs that it did so.
func (m *Manager) CloseForced() error {
	if !m.active {
		return nil
	}
	dblog.L().Warnw("forcing commit of transaction left open at shutdown")
	return m.Commit()
}
