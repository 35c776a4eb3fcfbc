package btree

import "btreedb/internal/node"

// Cursor walks leaf cells in key order, following next_leaf links
// across page boundaries. It never crosses a split/merge boundary
// incorrectly because every read re-fetches the current page's live
// contents from the Accessor.
type Cursor struct {
	tree *Tree
	page uint32
	cell uint32
	end  bool
}

// CursorAtStart returns a cursor positioned at the smallest key in the tree.
func (t *Tree) CursorAtStart() (*Cursor, error) {
	pg, err := t.FirstLeaf()
	if err != nil {
		return nil, err
	}
	p, err := t.pa.PageForRead(pg)
	if err != nil {
		return nil, err
	}
	cur := &Cursor{tree: t, page: pg, cell: 0}
	if node.GetLeafNumCells(p.Data[:]) == 0 {
		// The leftmost leaf can be left empty by deletes; skip ahead.
		if err := cur.Advance(); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// CursorAtKey returns a cursor positioned at the first key >= key
// (an index seek / range-scan start point).
func (t *Tree) CursorAtKey(key uint32) (*Cursor, error) {
	cur, _, err := t.Search(key)
	if err != nil {
		return nil, err
	}
	if cur.end {
		// The insertion point is past this leaf's last cell (its separator
		// can be stale after a delete); the next key lives further along.
		cur.end = false
		if err := cur.Advance(); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// End reports whether the cursor has advanced past the last row.
func (c *Cursor) End() bool { return c.end }

// Key returns the key at the cursor's current position.
func (c *Cursor) Key() (uint32, error) {
	p, err := c.tree.pa.PageForRead(c.page)
	if err != nil {
		return 0, err
	}
	return node.LeafKey(p.Data[:], c.cell), nil
}

// Row returns the deserialised row at the cursor's current position.
func (c *Cursor) Row() (node.Row, error) {
	p, err := c.tree.pa.PageForRead(c.page)
	if err != nil {
		return node.Row{}, err
	}
	return node.DeserializeRow(node.LeafValue(p.Data[:], c.cell))
}

// Advance moves to the next cell, crossing into the linked sibling leaf
// when the current one is exhausted.
func (c *Cursor) Advance() error {
	p, err := c.tree.pa.PageForRead(c.page)
	if err != nil {
		return err
	}
	buf := p.Data[:]
	n := node.GetLeafNumCells(buf)
	c.cell++
	if c.cell < n {
		return nil
	}

	// Follow next_leaf past any leaves emptied by deletes.
	next := node.GetNextLeaf(buf)
	for next != 0 {
		np, err := c.tree.pa.PageForRead(next)
		if err != nil {
			return err
		}
		if node.GetLeafNumCells(np.Data[:]) > 0 {
			c.page = next
			c.cell = 0
			return nil
		}
		next = node.GetNextLeaf(np.Data[:])
	}
	c.end = true
	return nil
}
