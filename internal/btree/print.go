package btree

import (
	"fmt"
	"strings"

	"btreedb/internal/node"
)

// Print renders the tree depth-first, indented by level, in the style
// of a typical toy-database ".btree" debug dump: leaves show their
// keys, internal nodes show their separator keys.
func (t *Tree) Print() (string, error) {
	var sb strings.Builder
	if err := t.printNode(&sb, RootPage, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (t *Tree) printNode(sb *strings.Builder, pageNum uint32, indent int) error {
	p, err := t.pa.PageForRead(pageNum)
	if err != nil {
		return err
	}
	buf := p.Data[:]
	pad := strings.Repeat("  ", indent)

	if node.GetNodeType(buf) == node.TypeLeaf {
		n := node.GetLeafNumCells(buf)
		fmt.Fprintf(sb, "%s- leaf (page %d, %d cells)\n", pad, pageNum, n)
		for i := uint32(0); i < n; i++ {
			fmt.Fprintf(sb, "%s  - %d\n", pad, node.LeafKey(buf, i))
		}
		return nil
	}

	nk := node.GetNumKeys(buf)
	fmt.Fprintf(sb, "%s- internal (page %d, %d keys)\n", pad, pageNum, nk)
	for i := uint32(0); i < nk; i++ {
		if err := t.printNode(sb, node.InternalCellChild(buf, i), indent+1); err != nil {
			return err
		}
		fmt.Fprintf(sb, "%s  - key %d\n", pad, node.InternalCellKey(buf, i))
	}
	if rc := node.GetRightChild(buf); rc != 0 || nk > 0 {
		return t.printNode(sb, rc, indent+1)
	}
	return nil
}

// Height returns the number of levels from root to leaf, inclusive.
func (t *Tree) Height() (int, error) {
	h := 1
	pg := RootPage
	for {
		p, err := t.pa.PageForRead(pg)
		if err != nil {
			return 0, err
		}
		buf := p.Data[:]
		if node.GetNodeType(buf) == node.TypeLeaf {
			return h, nil
		}
		pg = node.GetRightChild(buf)
		h++
	}
}
