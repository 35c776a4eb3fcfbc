package node

import (
	"encoding/binary"

	"btreedb/internal/config"
	"btreedb/internal/dberr"
)

// NodeType tags a page as a leaf or an internal node.
type NodeType uint8

const (
	TypeLeaf     NodeType = 1
	TypeInternal NodeType = 0
)

// Common node header: node_type(1) | is_root(1) | parent(4).
const (
	offNodeType = 0
	offIsRoot   = 1
	offParent   = 2
	CommonSize  = 6
)

// Leaf header adds num_cells(4) | next_leaf(4).
const (
	offLeafNumCells = CommonSize
	offLeafNextLeaf = CommonSize + 4
	LeafHeaderSize  = CommonSize + 8

	LeafKeySize  = 4
	LeafRowSize  = config.RowSize
	LeafCellSize = LeafKeySize + LeafRowSize
)

// Internal header adds num_keys(4) | right_child(4).
const (
	offInternalNumKeys    = CommonSize
	offInternalRightChild = CommonSize + 4
	InternalHeaderSize    = CommonSize + 8

	InternalChildSize = 4
	InternalKeySize   = 4
	InternalCellSize  = InternalChildSize + InternalKeySize
)

// LeafMaxCells is how many {key,row} cells fit in a page after the leaf
// header, with config.TrailerSize held back so page 0's stats/freelist
// trailer never collides with a full leaf's cells.
var LeafMaxCells = (config.PageSize - LeafHeaderSize - config.TrailerSize) / LeafCellSize

// InternalMaxCells is kept small, as in the reference implementation,
// to force frequent splits and exercise promotion/merge paths. Raising
// it is safe as long as invariants I2/I3 are preserved.
const InternalMaxCells = 3

// --- common header ---

func GetNodeType(buf []byte) NodeType { return NodeType(buf[offNodeType]) }
func SetNodeType(buf []byte, t NodeType) { buf[offNodeType] = byte(t) }

func GetIsRoot(buf []byte) bool { return buf[offIsRoot] != 0 }
func SetIsRoot(buf []byte, v bool) {
	if v {
		buf[offIsRoot] = 1
	} else {
		buf[offIsRoot] = 0
	}
}

func GetParent(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf[offParent : offParent+4]) }
func SetParent(buf []byte, p uint32) {
	binary.LittleEndian.PutUint32(buf[offParent:offParent+4], p)
}

// --- leaf header & cells ---

func GetLeafNumCells(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[offLeafNumCells : offLeafNumCells+4])
}
func SetLeafNumCells(buf []byte, n uint32) {
	binary.LittleEndian.PutUint32(buf[offLeafNumCells:offLeafNumCells+4], n)
}

func GetNextLeaf(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[offLeafNextLeaf : offLeafNextLeaf+4])
}
func SetNextLeaf(buf []byte, p uint32) {
	binary.LittleEndian.PutUint32(buf[offLeafNextLeaf:offLeafNextLeaf+4], p)
}

func leafCellOffset(i uint32) int { return LeafHeaderSize + int(i)*LeafCellSize }

func LeafKey(buf []byte, i uint32) uint32 {
	off := leafCellOffset(i)
	return binary.LittleEndian.Uint32(buf[off : off+4])
}

func SetLeafKey(buf []byte, i uint32, key uint32) {
	off := leafCellOffset(i)
	binary.LittleEndian.PutUint32(buf[off:off+4], key)
}

// LeafValue returns the RowSize-byte slice holding cell i's serialised row.
func LeafValue(buf []byte, i uint32) []byte {
	off := leafCellOffset(i) + LeafKeySize
	return buf[off : off+LeafRowSize]
}

// CopyLeafCell copies cell src in srcBuf to cell dst in dstBuf.
func CopyLeafCell(dstBuf []byte, dst uint32, srcBuf []byte, src uint32) {
	dOff, sOff := leafCellOffset(dst), leafCellOffset(src)
	copy(dstBuf[dOff:dOff+LeafCellSize], srcBuf[sOff:sOff+LeafCellSize])
}

// --- internal header & cells ---

func GetNumKeys(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[offInternalNumKeys : offInternalNumKeys+4])
}
func SetNumKeys(buf []byte, n uint32) {
	binary.LittleEndian.PutUint32(buf[offInternalNumKeys:offInternalNumKeys+4], n)
}

func GetRightChild(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[offInternalRightChild : offInternalRightChild+4])
}
func SetRightChild(buf []byte, p uint32) {
	binary.LittleEndian.PutUint32(buf[offInternalRightChild:offInternalRightChild+4], p)
}

func internalCellOffset(i uint32) int { return InternalHeaderSize + int(i)*InternalCellSize }

func InternalCellKey(buf []byte, i uint32) uint32 {
	off := internalCellOffset(i) + InternalChildSize
	return binary.LittleEndian.Uint32(buf[off : off+4])
}

func InternalCellChild(buf []byte, i uint32) uint32 {
	off := internalCellOffset(i)
	return binary.LittleEndian.Uint32(buf[off : off+4])
}

func SetInternalCell(buf []byte, i uint32, child, key uint32) {
	off := internalCellOffset(i)
	binary.LittleEndian.PutUint32(buf[off:off+4], child)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], key)
}

func CopyInternalCell(dstBuf []byte, dst uint32, srcBuf []byte, src uint32) {
	dOff, sOff := internalCellOffset(dst), internalCellOffset(src)
	copy(dstBuf[dOff:dOff+InternalCellSize], srcBuf[sOff:sOff+InternalCellSize])
}

// InternalChild returns right_child when i==num_keys, else the i-th
// cell's child, with bounds checking and INVALID_PAGE rejection.
func InternalChild(buf []byte, i uint32) (uint32, error) {
	numKeys := GetNumKeys(buf)
	if i > numKeys {
		return 0, dberr.New(dberr.PageOOB, "internal child index %d exceeds num_keys %d", i, numKeys)
	}
	var child uint32
	if i == numKeys {
		child = GetRightChild(buf)
	} else {
		child = InternalCellChild(buf, i)
	}
	if child == config.InvalidPage {
		return 0, dberr.New(dberr.InvalidPageAccess, "internal child at index %d is INVALID_PAGE", i)
	}
	return child, nil
}
