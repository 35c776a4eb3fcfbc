package btree

import (
	"sort"

	"btreedb/internal/config"
	"btreedb/internal/dblog"
	"btreedb/internal/node"
)

// splitLeafAndInsert redistributes a full leaf's MAX+1 cells (the
// existing MAX plus the one being inserted) across the old leaf and a
// freshly allocated right sibling, right-biased per spec: right gets
// ceil((MAX+1)/2), left gets the rest.
func (t *Tree) splitLeafAndInsert(oldPage uint32, insertAt uint32, key uint32, row node.Row) error {
	oldP, err := t.pa.PageForWrite(oldPage)
	if err != nil {
		return err
	}
	oldBuf := oldP.Data[:]
	wasRoot := node.GetIsRoot(oldBuf)
	oldParent := node.GetParent(oldBuf)
	oldNextLeaf := node.GetNextLeaf(oldBuf)

	max := uint32(node.LeafMaxCells)
	total := max + 1
	leftSplit := total / 2
	rightSplit := total - leftSplit

	rPage, err := t.pa.Allocate()
	if err != nil {
		return err
	}
	rP, err := t.pa.PageForWrite(rPage)
	if err != nil {
		return err
	}
	rBuf := rP.Data[:]
	initLeaf(rBuf, oldParent, false)
	node.SetNextLeaf(rBuf, oldNextLeaf)

	var newRowBuf [config.RowSize]byte
	if err := node.SerializeRow(row, newRowBuf[:]); err != nil {
		return err
	}

	for i := int(total) - 1; i >= 0; i-- {
		ii := uint32(i)
		var destBuf []byte
		var destIdx uint32
		if ii >= leftSplit {
			destBuf, destIdx = rBuf, ii-leftSplit
		} else {
			destBuf, destIdx = oldBuf, ii
		}
		switch {
		case ii == insertAt:
			node.SetLeafKey(destBuf, destIdx, key)
			copy(node.LeafValue(destBuf, destIdx), newRowBuf[:])
		case ii > insertAt:
			node.CopyLeafCell(destBuf, destIdx, oldBuf, ii-1)
		default:
			node.CopyLeafCell(destBuf, destIdx, oldBuf, ii)
		}
	}
	node.SetLeafNumCells(oldBuf, leftSplit)
	node.SetLeafNumCells(rBuf, rightSplit)
	node.SetNextLeaf(oldBuf, rPage)
	oldP.Dirty = true
	rP.Dirty = true

	dblog.L().Debugw("leaf split", "old", oldPage, "new", rPage, "left_cells", leftSplit, "right_cells", rightSplit)

	if wasRoot {
		_, err := t.promoteRoot(oldPage, rPage)
		return err
	}

	newOldMax := node.LeafKey(oldBuf, leftSplit-1)
	parentP, err := t.pa.PageForWrite(oldParent)
	if err != nil {
		return err
	}
	updateSeparator(parentP.Data[:], oldPage, newOldMax)
	parentP.Dirty = true

	rMax := node.LeafKey(rBuf, rightSplit-1)
	return t.internalInsert(oldParent, rPage, rMax)
}

// promoteRoot grows the tree by one level: the current contents of
// rootPage (always page 0) are copied verbatim into a freshly allocated
// left-child page, and rootPage is reinitialised as an internal node
// with that copy as its single left cell and rightPage as right_child.
func (t *Tree) promoteRoot(rootPage uint32, rightPage uint32) (leftPage uint32, err error) {
	rootP, err := t.pa.PageForWrite(rootPage)
	if err != nil {
		return 0, err
	}
	rootBuf := rootP.Data[:]
	var rootCopy [config.PageSize]byte
	copy(rootCopy[:], rootBuf)

	leftPage, err = t.pa.Allocate()
	if err != nil {
		return 0, err
	}
	leftP, err := t.pa.PageForWrite(leftPage)
	if err != nil {
		return 0, err
	}
	leftBuf := leftP.Data[:]
	copy(leftBuf, rootCopy[:])
	node.SetIsRoot(leftBuf, false)
	leftP.Dirty = true

	if node.GetNodeType(leftBuf) == node.TypeInternal {
		nk := node.GetNumKeys(leftBuf)
		for i := uint32(0); i < nk; i++ {
			if err := t.reparent(node.InternalCellChild(leftBuf, i), leftPage); err != nil {
				return 0, err
			}
		}
		if rc := node.GetRightChild(leftBuf); rc != config.InvalidPage {
			if err := t.reparent(rc, leftPage); err != nil {
				return 0, err
			}
		}
	}

	leftMax, err := t.maxKeyOfSubtree(leftPage)
	if err != nil {
		return 0, err
	}

	initInternal(rootBuf, config.InvalidPage, true)
	node.SetNumKeys(rootBuf, 1)
	node.SetInternalCell(rootBuf, 0, leftPage, leftMax)
	node.SetRightChild(rootBuf, rightPage)
	rootP.Dirty = true

	if err := t.reparent(leftPage, rootPage); err != nil {
		return 0, err
	}
	if err := t.reparent(rightPage, rootPage); err != nil {
		return 0, err
	}

	dblog.L().Debugw("root promoted", "root", rootPage, "left", leftPage, "right", rightPage)
	return leftPage, nil
}

func (t *Tree) reparent(child uint32, parent uint32) error {
	p, err := t.pa.PageForWrite(child)
	if err != nil {
		return err
	}
	node.SetParent(p.Data[:], parent)
	p.Dirty = true
	return nil
}

// internalInsert adds child (whose subtree max key is childMax) to
// parent, splitting parent first if it is already at InternalMaxCells.
func (t *Tree) internalInsert(parentPage uint32, child uint32, childMax uint32) error {
	p, err := t.pa.PageForWrite(parentPage)
	if err != nil {
		return err
	}
	buf := p.Data[:]
	numKeys := node.GetNumKeys(buf)

	if numKeys >= node.InternalMaxCells {
		return t.internalSplitAndInsert(parentPage, child, childMax)
	}

	rightChild := node.GetRightChild(buf)
	if rightChild == config.InvalidPage {
		node.SetRightChild(buf, child)
		p.Dirty = true
		return t.reparent(child, parentPage)
	}

	rightMax, err := t.maxKeyOfSubtree(rightChild)
	if err != nil {
		return err
	}

	if childMax > rightMax {
		node.SetInternalCell(buf, numKeys, rightChild, rightMax)
		node.SetNumKeys(buf, numKeys+1)
		node.SetRightChild(buf, child)
	} else {
		idx := uint32(sort.Search(int(numKeys), func(i int) bool {
			return node.InternalCellKey(buf, uint32(i)) >= childMax
		}))
		for i := numKeys; i > idx; i-- {
			node.CopyInternalCell(buf, i, buf, i-1)
		}
		node.SetInternalCell(buf, idx, child, childMax)
		node.SetNumKeys(buf, numKeys+1)
	}
	p.Dirty = true
	return t.reparent(child, parentPage)
}

// internalSplitAndInsert splits a full internal node. The old right
// child and the upper half of its cells move into a new sibling N,
// then the inbound child lands on whichever side its max key belongs.
func (t *Tree) internalSplitAndInsert(oldPage uint32, inboundChild uint32, inboundMax uint32) error {
	nPage, err := t.pa.Allocate()
	if err != nil {
		return err
	}
	nP, err := t.pa.PageForWrite(nPage)
	if err != nil {
		return err
	}
	initInternal(nP.Data[:], config.InvalidPage, false)
	nP.Dirty = true

	oldP, err := t.pa.PageForWrite(oldPage)
	if err != nil {
		return err
	}
	wasRoot := node.GetIsRoot(oldP.Data[:])
	oldParent := node.GetParent(oldP.Data[:])

	if wasRoot {
		leftPage, err := t.promoteRoot(oldPage, nPage)
		if err != nil {
			return err
		}
		oldPage = leftPage
		oldP, err = t.pa.PageForWrite(oldPage)
		if err != nil {
			return err
		}
		oldParent = node.GetParent(oldP.Data[:])
	}

	max := node.GetNumKeys(oldP.Data[:])

	oldRightChild := node.GetRightChild(oldP.Data[:])
	rightChildMax, err := t.maxKeyOfSubtree(oldRightChild)
	if err != nil {
		return err
	}
	if err := t.internalInsert(nPage, oldRightChild, rightChildMax); err != nil {
		return err
	}

	for i := int(max) - 1; i > int(max)/2; i-- {
		oldBuf, err := t.pa.PageForWrite(oldPage)
		if err != nil {
			return err
		}
		childPg := node.InternalCellChild(oldBuf.Data[:], uint32(i))
		childKey := node.InternalCellKey(oldBuf.Data[:], uint32(i))
		if err := t.internalInsert(nPage, childPg, childKey); err != nil {
			return err
		}
		oldBuf, err = t.pa.PageForWrite(oldPage)
		if err != nil {
			return err
		}
		node.SetNumKeys(oldBuf.Data[:], node.GetNumKeys(oldBuf.Data[:])-1)
		oldBuf.Dirty = true
	}

	oldBuf, err := t.pa.PageForWrite(oldPage)
	if err != nil {
		return err
	}
	nk := node.GetNumKeys(oldBuf.Data[:])
	lastChild := node.InternalCellChild(oldBuf.Data[:], nk-1)
	node.SetRightChild(oldBuf.Data[:], lastChild)
	node.SetNumKeys(oldBuf.Data[:], nk-1)
	oldBuf.Dirty = true

	oldPostSplitMax, err := t.maxKeyOfSubtree(oldPage)
	if err != nil {
		return err
	}
	if inboundMax <= oldPostSplitMax {
		if err := t.internalInsert(oldPage, inboundChild, inboundMax); err != nil {
			return err
		}
	} else {
		if err := t.internalInsert(nPage, inboundChild, inboundMax); err != nil {
			return err
		}
	}

	dblog.L().Debugw("internal split", "old", oldPage, "new", nPage, "was_root", wasRoot)

	// The grandparent's separator for oldPage must always be refreshed:
	// promoteRoot (when wasRoot) stamped it with old's pre-redistribution
	// max key, which the cell-shifting loop above has since shrunk. Only
	// the internal_insert of N into the grandparent is skipped when
	// promoting, since promoteRoot already wired N in as right_child.
	oldNewMax, err := t.maxKeyOfSubtree(oldPage)
	if err != nil {
		return err
	}
	gpP, err := t.pa.PageForWrite(oldParent)
	if err != nil {
		return err
	}
	updateSeparator(gpP.Data[:], oldPage, oldNewMax)
	gpP.Dirty = true

	if wasRoot {
		return nil
	}

	nMax, err := t.maxKeyOfSubtree(nPage)
	if err != nil {
		return err
	}
	return t.internalInsert(oldParent, nPage, nMax)
}
