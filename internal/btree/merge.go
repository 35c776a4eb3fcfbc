package btree

import (
	"btreedb/internal/config"
	"btreedb/internal/dberr"
	"btreedb/internal/dblog"
	"btreedb/internal/node"
)

// mergeUp absorbs an emptied node into its left sibling and repeats the
// check on the parent, since removing a child can itself empty the
// parent (no regular cells left and an INVALID right_child). A root
// left with a single child is collapsed to shrink the tree's height.
func (t *Tree) mergeUp(pageNum uint32) error {
	p, err := t.pa.PageForRead(pageNum)
	if err != nil {
		return err
	}
	buf := p.Data[:]

	if node.GetIsRoot(buf) {
		if node.GetNodeType(buf) == node.TypeInternal && node.GetNumKeys(buf) == 0 {
			return t.collapseRoot(pageNum)
		}
		return nil
	}

	isLeaf := node.GetNodeType(buf) == node.TypeLeaf
	var empty bool
	if isLeaf {
		empty = node.GetLeafNumCells(buf) == 0
	} else {
		empty = node.GetNumKeys(buf) == 0 && node.GetRightChild(buf) == config.InvalidPage
	}
	if !empty {
		return nil
	}

	parent := node.GetParent(buf)
	leftSib, ok, err := t.leftSiblingOf(parent, pageNum)
	if err != nil {
		return err
	}
	if !ok {
		// Leftmost child with nothing to its left: nothing to merge into.
		return nil
	}

	if isLeaf {
		if err := t.leafMerge(leftSib, pageNum); err != nil {
			return err
		}
	} else {
		if err := t.internalMerge(leftSib, pageNum); err != nil {
			return err
		}
	}
	return t.mergeUp(parent)
}

// leafMerge appends right's cells onto left, relinks the leaf chain,
// and removes right's entry from their shared parent.
func (t *Tree) leafMerge(leftPage, rightPage uint32) error {
	lP, err := t.pa.PageForWrite(leftPage)
	if err != nil {
		return err
	}
	lBuf := lP.Data[:]
	rP, err := t.pa.PageForRead(rightPage)
	if err != nil {
		return err
	}
	rBuf := rP.Data[:]

	lCount := node.GetLeafNumCells(lBuf)
	rCount := node.GetLeafNumCells(rBuf)
	for i := uint32(0); i < rCount; i++ {
		node.CopyLeafCell(lBuf, lCount+i, rBuf, i)
	}
	node.SetLeafNumCells(lBuf, lCount+rCount)
	node.SetNextLeaf(lBuf, node.GetNextLeaf(rBuf))
	lP.Dirty = true

	parent := node.GetParent(lBuf)
	dblog.L().Debugw("leaf merge", "left", leftPage, "right", rightPage, "parent", parent)
	if err := t.parentRemoveChild(parent, rightPage); err != nil {
		return err
	}
	t.pa.Free(rightPage)
	return nil
}

// internalMerge pulls the parent's separator key for left down between
// left's and right's cell runs, then appends right's cells and adopts
// right's right_child as the merged node's own.
func (t *Tree) internalMerge(leftPage, rightPage uint32) error {
	lP, err := t.pa.PageForWrite(leftPage)
	if err != nil {
		return err
	}
	lBuf := lP.Data[:]
	rP, err := t.pa.PageForRead(rightPage)
	if err != nil {
		return err
	}
	rBuf := rP.Data[:]

	parent := node.GetParent(lBuf)
	parentP, err := t.pa.PageForWrite(parent)
	if err != nil {
		return err
	}
	parentBuf := parentP.Data[:]

	var sep uint32
	found := false
	nk := node.GetNumKeys(parentBuf)
	for i := uint32(0); i < nk; i++ {
		if node.InternalCellChild(parentBuf, i) == leftPage {
			sep = node.InternalCellKey(parentBuf, i)
			found = true
			break
		}
	}
	if !found {
		return dberr.New(dberr.InvalidPageAccess, "parent %d missing separator for left child %d", parent, leftPage)
	}

	lCount := node.GetNumKeys(lBuf)
	node.SetInternalCell(lBuf, lCount, node.GetRightChild(lBuf), sep)
	lCount++

	rCount := node.GetNumKeys(rBuf)
	for i := uint32(0); i < rCount; i++ {
		node.CopyInternalCell(lBuf, lCount+i, rBuf, i)
	}
	node.SetNumKeys(lBuf, lCount+rCount)
	node.SetRightChild(lBuf, node.GetRightChild(rBuf))
	lP.Dirty = true

	total := node.GetNumKeys(lBuf)
	for i := lCount - 1; i < total; i++ {
		if err := t.reparent(node.InternalCellChild(lBuf, i), leftPage); err != nil {
			return err
		}
	}
	if rc := node.GetRightChild(lBuf); rc != config.InvalidPage {
		if err := t.reparent(rc, leftPage); err != nil {
			return err
		}
	}

	dblog.L().Debugw("internal merge", "left", leftPage, "right", rightPage, "parent", parent)
	if err := t.parentRemoveChild(parent, rightPage); err != nil {
		return err
	}
	t.pa.Free(rightPage)
	return nil
}

// parentRemoveChild drops child from parent's cell list, or — if child
// was the right_child — promotes the previous last cell's child into
// that role.
func (t *Tree) parentRemoveChild(parentPage, child uint32) error {
	p, err := t.pa.PageForWrite(parentPage)
	if err != nil {
		return err
	}
	buf := p.Data[:]
	numKeys := node.GetNumKeys(buf)

	for i := uint32(0); i < numKeys; i++ {
		if node.InternalCellChild(buf, i) == child {
			for j := i; j < numKeys-1; j++ {
				node.CopyInternalCell(buf, j, buf, j+1)
			}
			node.SetNumKeys(buf, numKeys-1)
			p.Dirty = true
			return nil
		}
	}

	if node.GetRightChild(buf) == child {
		if numKeys == 0 {
			node.SetRightChild(buf, config.InvalidPage)
			p.Dirty = true
			return nil
		}
		newRight := node.InternalCellChild(buf, numKeys-1)
		node.SetRightChild(buf, newRight)
		node.SetNumKeys(buf, numKeys-1)
		p.Dirty = true
		return nil
	}

	return dberr.New(dberr.InvalidPageAccess, "parent %d does not reference child %d", parentPage, child)
}

// leftSiblingOf finds the sibling immediately before child in parent's
// child ordering. ok is false when child is already the leftmost.
func (t *Tree) leftSiblingOf(parentPage, child uint32) (sibling uint32, ok bool, err error) {
	p, err := t.pa.PageForRead(parentPage)
	if err != nil {
		return 0, false, err
	}
	buf := p.Data[:]
	nk := node.GetNumKeys(buf)

	for i := uint32(0); i < nk; i++ {
		if node.InternalCellChild(buf, i) == child {
			if i == 0 {
				return 0, false, nil
			}
			return node.InternalCellChild(buf, i-1), true, nil
		}
	}
	if node.GetRightChild(buf) == child {
		if nk == 0 {
			return 0, false, nil
		}
		return node.InternalCellChild(buf, nk-1), true, nil
	}
	return 0, false, dberr.New(dberr.InvalidPageAccess, "child %d not found in parent %d", child, parentPage)
}

// collapseRoot replaces an internal root left with only a right_child
// (no separator cells) by the contents of that child, shrinking the
// tree's height by one level.
func (t *Tree) collapseRoot(rootPage uint32) error {
	rP, err := t.pa.PageForWrite(rootPage)
	if err != nil {
		return err
	}
	rBuf := rP.Data[:]
	child := node.GetRightChild(rBuf)
	if child == config.InvalidPage {
		return nil
	}

	cP, err := t.pa.PageForRead(child)
	if err != nil {
		return err
	}
	var childCopy [config.PageSize]byte
	copy(childCopy[:], cP.Data[:])

	copy(rBuf, childCopy[:])
	node.SetIsRoot(rBuf, true)
	rP.Dirty = true

	if node.GetNodeType(rBuf) == node.TypeInternal {
		nk := node.GetNumKeys(rBuf)
		for i := uint32(0); i < nk; i++ {
			if err := t.reparent(node.InternalCellChild(rBuf, i), rootPage); err != nil {
				return err
			}
		}
		if rc := node.GetRightChild(rBuf); rc != config.InvalidPage {
			if err := t.reparent(rc, rootPage); err != nil {
				return err
			}
		}
	}

	dblog.L().Debugw("root collapsed", "root", rootPage, "absorbed", child)
	t.pa.Free(child)
	return nil
}
