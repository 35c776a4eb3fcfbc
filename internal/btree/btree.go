// Package btree implements the leaf-linked B+tree: fixed-width leaf
// rows, internal separator keys plus a distinguished right-child
// pointer, split with root promotion, merge, and parent-pointer
// maintenance. The tree never talks to the filesystem directly — every
// page access goes through an Accessor, so the same tree code runs
// whether or not a transaction's shadow map is active.
package btree

import (
	"btreedb/internal/config"
	"btreedb/internal/dberr"
	"btreedb/internal/dblog"
	"btreedb/internal/node"
	"btreedb/internal/pager"
)

// RootPage is fixed: page 0 is always the root (invariant I6).
const RootPage uint32 = 0

// Accessor is the page-access surface the tree needs. *txn.Manager
// satisfies it, whether or not a transaction is currently active.
type Accessor interface {
	PageForRead(n uint32) (*pager.Page, error)
	PageForWrite(n uint32) (*pager.Page, error)
	Allocate() (uint32, error)
	Free(n uint32)
	NumPages() uint32
}

// Tree is the B+tree handle bound to an Accessor.
type Tree struct {
	pa Accessor
}

// Open binds a Tree to pa, initialising page 0 as an empty leaf root if
// the backing store is brand new.
func Open(pa Accessor) (*Tree, error) {
	t := &Tree{pa: pa}
	if pa.NumPages() == 0 {
		pgNum, err := pa.Allocate()
		if err != nil {
			return nil, err
		}
		if pgNum != RootPage {
			return nil, dberr.New(dberr.CorruptFile, "expected root page %d, got %d", RootPage, pgNum)
		}
		p, err := pa.PageForWrite(RootPage)
		if err != nil {
			return nil, err
		}
		initLeaf(p.Data[:], config.InvalidPage, true)
		node.SetNextLeaf(p.Data[:], 0)
		p.Dirty = true
	}
	return t, nil
}

func initLeaf(buf []byte, parent uint32, isRoot bool) {
	for i := range buf {
		buf[i] = 0
	}
	node.SetNodeType(buf, node.TypeLeaf)
	node.SetIsRoot(buf, isRoot)
	node.SetParent(buf, parent)
	node.SetLeafNumCells(buf, 0)
}

func initInternal(buf []byte, parent uint32, isRoot bool) {
	for i := range buf {
		buf[i] = 0
	}
	node.SetNodeType(buf, node.TypeInternal)
	node.SetIsRoot(buf, isRoot)
	node.SetParent(buf, parent)
	node.SetNumKeys(buf, 0)
	node.SetRightChild(buf, config.InvalidPage)
}

// findLeaf descends from the root to the leaf that should contain key.
func (t *Tree) findLeaf(key uint32) (uint32, error) {
	pg := RootPage
	for {
		p, err := t.pa.PageForRead(pg)
		if err != nil {
			return 0, err
		}
		buf := p.Data[:]
		if node.GetNodeType(buf) == node.TypeLeaf {
			return pg, nil
		}
		child, err := childForKey(buf, key)
		if err != nil {
			return 0, err
		}
		pg = child
	}
}

// childForKey binary-searches an internal node for the smallest cell
// key >= k and returns that cell's child, or right_child if none matches.
func childForKey(buf []byte, key uint32) (uint32, error) {
	n := node.GetNumKeys(buf)
	lo, hi := uint32(0), n
	for lo < hi {
		mid := (lo + hi) / 2
		if node.InternalCellKey(buf, mid) >= key {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo < n {
		return node.InternalCellChild(buf, lo)
	}
	rc := node.GetRightChild(buf)
	if rc == config.InvalidPage {
		return 0, dberr.New(dberr.InvalidPageAccess, "internal node has no right_child for key %d", key)
	}
	return rc, nil
}

// Search positions a Cursor at key if present, else at its insertion
// point within the owning leaf. found reports whether key was present.
func (t *Tree) Search(key uint32) (cur *Cursor, found bool, err error) {
	leafPg, err := t.findLeaf(key)
	if err != nil {
		return nil, false, err
	}
	p, err := t.pa.PageForRead(leafPg)
	if err != nil {
		return nil, false, err
	}
	buf := p.Data[:]
	n := node.GetLeafNumCells(buf)

	lo, hi := uint32(0), n
	for lo < hi {
		mid := (lo + hi) / 2
		if node.LeafKey(buf, mid) >= key {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	found = lo < n && node.LeafKey(buf, lo) == key
	return &Cursor{tree: t, page: leafPg, cell: lo, end: lo >= n}, found, nil
}

// Insert adds key/row to the tree. Returns ExecuteDuplicateKey if the
// key already exists.
func (t *Tree) Insert(key uint32, row node.Row) error {
	cur, found, err := t.Search(key)
	if err != nil {
		return err
	}
	if found {
		return dberr.New(dberr.ExecuteDuplicateKey, "key %d already exists", key)
	}

	p, err := t.pa.PageForWrite(cur.page)
	if err != nil {
		return err
	}
	buf := p.Data[:]
	n := node.GetLeafNumCells(buf)

	if n < uint32(node.LeafMaxCells) {
		for i := n; i > cur.cell; i-- {
			node.CopyLeafCell(buf, i, buf, i-1)
		}
		node.SetLeafKey(buf, cur.cell, key)
		if err := node.SerializeRow(row, node.LeafValue(buf, cur.cell)); err != nil {
			return err
		}
		node.SetLeafNumCells(buf, n+1)
		p.Dirty = true
		return nil
	}

	return t.splitLeafAndInsert(cur.page, cur.cell, key, row)
}

// Update overwrites the row stored at key in place. The key itself
// never changes, so this never touches tree shape — no split, no merge.
func (t *Tree) Update(key uint32, row node.Row) error {
	cur, found, err := t.Search(key)
	if err != nil {
		return err
	}
	if !found {
		return dberr.New(dberr.ExecuteKeyNotFound, "key %d not found", key)
	}
	p, err := t.pa.PageForWrite(cur.page)
	if err != nil {
		return err
	}
	return node.SerializeRow(row, node.LeafValue(p.Data[:], cur.cell))
}

// Delete removes key, merging the owning leaf upward through its
// ancestors if it becomes empty and a left sibling absorbs it.
func (t *Tree) Delete(key uint32) error {
	cur, found, err := t.Search(key)
	if err != nil {
		return err
	}
	if !found {
		return dberr.New(dberr.ExecuteKeyNotFound, "key %d not found", key)
	}

	p, err := t.pa.PageForWrite(cur.page)
	if err != nil {
		return err
	}
	buf := p.Data[:]
	n := node.GetLeafNumCells(buf)
	for i := cur.cell; i < n-1; i++ {
		node.CopyLeafCell(buf, i, buf, i+1)
	}
	node.SetLeafNumCells(buf, n-1)
	p.Dirty = true

	if n-1 == 0 && !node.GetIsRoot(buf) {
		dblog.L().Debugw("leaf emptied by delete, attempting merge", "page", cur.page, "key", key)
		return t.mergeUp(cur.page)
	}
	return nil
}

// maxKeyOfSubtree descends to the rightmost leaf of the subtree rooted
// at pageNum and returns its last key.
func (t *Tree) maxKeyOfSubtree(pageNum uint32) (uint32, error) {
	for {
		p, err := t.pa.PageForRead(pageNum)
		if err != nil {
			return 0, err
		}
		buf := p.Data[:]
		if node.GetNodeType(buf) == node.TypeLeaf {
			n := node.GetLeafNumCells(buf)
			if n == 0 {
				return 0, dberr.New(dberr.CorruptFile, "empty leaf page %d has no max key", pageNum)
			}
			return node.LeafKey(buf, n-1), nil
		}
		pageNum = node.GetRightChild(buf)
		if pageNum == config.InvalidPage {
			return 0, dberr.New(dberr.InvalidPageAccess, "internal node missing right_child")
		}
	}
}

// updateSeparator rewrites the key of the cell in buf whose child is
// child, if one exists. A child referenced only via right_child carries
// no explicit separator and is left untouched.
func updateSeparator(buf []byte, child uint32, newKey uint32) {
	n := node.GetNumKeys(buf)
	for i := uint32(0); i < n; i++ {
		if node.InternalCellChild(buf, i) == child {
			node.SetInternalCell(buf, i, child, newKey)
			return
		}
	}
}

// FirstLeaf returns the page number of the leftmost leaf.
func (t *Tree) FirstLeaf() (uint32, error) {
	pg := RootPage
	for {
		p, err := t.pa.PageForRead(pg)
		if err != nil {
			return 0, err
		}
		buf := p.Data[:]
		if node.GetNodeType(buf) == node.TypeLeaf {
			return pg, nil
		}
		n := node.GetNumKeys(buf)
		if n > 0 {
			pg = node.InternalCellChild(buf, 0)
		} else {
			pg = node.GetRightChild(buf)
		}
	}
}
