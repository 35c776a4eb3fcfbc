// Package stats tracks approximate table statistics for the query
// planner's cost estimates — row count, the id column's observed
// bounds, and a per-column (id/username/email) hashed-bitset
// cardinality estimate — and persists a snapshot of all of it (plus
// the pager's freelist) into a trailer packed into page 0's
// otherwise-unused tail bytes, so restart doesn't force a full rescan
// before the planner has anything to reason about.
package stats

import (
	"encoding/binary"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"

	"btreedb/internal/config"
	"btreedb/internal/node"
)

// NumBuckets is the width of each hashed-bucket cardinality sketch.
const NumBuckets = 1024

// Statistics mirrors the in-memory struct the planner reasons over:
// total row count, the id column's min/max, and a per-column
// approximate distinct-value count. Valid is false until the first row
// is observed, since IDMin/IDMax are meaningless on an empty table.
type Statistics struct {
	TotalRows uint64
	IDMin     uint32
	IDMax     uint32
	Valid     bool

	idCard       *bitset.BitSet
	usernameCard *bitset.BitSet
	emailCard    *bitset.BitSet
}

// New returns an empty Statistics.
func New() *Statistics {
	return &Statistics{
		idCard:       bitset.New(NumBuckets),
		usernameCard: bitset.New(NumBuckets),
		emailCard:    bitset.New(NumBuckets),
	}
}

// ObserveInsert records a newly inserted row: it bumps total_rows,
// stretches the id range, and non-decreasingly tracks cardinality for
// all three columns.
func (s *Statistics) ObserveInsert(row node.Row) {
	s.TotalRows++
	if !s.Valid {
		s.IDMin, s.IDMax = row.ID, row.ID
		s.Valid = true
	} else {
		if row.ID < s.IDMin {
			s.IDMin = row.ID
		}
		if row.ID > s.IDMax {
			s.IDMax = row.ID
		}
	}
	markUint32(s.idCard, row.ID)
	markString(s.usernameCard, row.Username)
	markString(s.emailCard, row.Email)
}

// ObserveDelete records a removed row's id. total_rows decrements and
// everything resets once the table is empty — id bounds and the
// cardinality sketches are meaningless for zero rows and would
// otherwise keep reporting stale values from before the table drained.
func (s *Statistics) ObserveDelete(id uint32) {
	if s.TotalRows > 0 {
		s.TotalRows--
	}
	if s.TotalRows == 0 {
		s.Reset()
	}
}

func markUint32(bs *bitset.BitSet, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	bs.Set(uint(xxhash.Sum64(buf[:]) % NumBuckets))
}

func markString(bs *bitset.BitSet, v string) {
	bs.Set(uint(xxhash.Sum64String(v) % NumBuckets))
}

// cardinality applies the standard linear-counting estimator to the
// fraction of buckets touched in bs.
func cardinality(bs *bitset.BitSet) uint64 {
	m := float64(NumBuckets)
	touched := float64(bs.Count())
	if touched >= m {
		touched = m - 1
	}
	return uint64(-m * math.Log(1-touched/m))
}

// IDCardinality estimates the number of distinct id values observed.
func (s *Statistics) IDCardinality() uint64 { return cardinality(s.idCard) }

// UsernameCardinality estimates the number of distinct usernames observed.
func (s *Statistics) UsernameCardinality() uint64 { return cardinality(s.usernameCard) }

// EmailCardinality estimates the number of distinct emails observed.
func (s *Statistics) EmailCardinality() uint64 { return cardinality(s.emailCard) }

// Reset clears the row count, id bounds, and all three sketches.
func (s *Statistics) Reset() {
	s.TotalRows = 0
	s.IDMin = 0
	s.IDMax = 0
	s.Valid = false
	s.idCard = bitset.New(NumBuckets)
	s.usernameCard = bitset.New(NumBuckets)
	s.emailCard = bitset.New(NumBuckets)
}

const (
	trailerMagic        = 0x53544254 // "STBT"
	TrailerSize          = config.TrailerSize
	trailerBitsetWords   = NumBuckets / 64
	trailerBitsetBytes   = trailerBitsetWords * 8
	trailerMaxFreePages  = 16
)

// Trailer layout, relative to the start of the reserved region:
//
//	magic(4) | totalRows(8) | idMin(4) | idMax(4) | valid(1, padded to 4)
//	| idCard(128) | usernameCard(128) | emailCard(128)
//	| freelistCount(4) | freelist entries(16*4=64)
const (
	offMagic     = 0
	offTotalRows = offMagic + 4
	offIDMin     = offTotalRows + 8
	offIDMax     = offIDMin + 4
	offValid     = offIDMax + 4
	offIDCard    = offValid + 4
	offUserCard  = offIDCard + trailerBitsetBytes
	offEmailCard = offUserCard + trailerBitsetBytes
	offFreeCount = offEmailCard + trailerBitsetBytes
	offFreeList  = offFreeCount + 4
)

// PersistTrailer packs this snapshot and up to trailerMaxFreePages
// freelist entries into the last TrailerSize bytes of buf (page 0).
func (s *Statistics) PersistTrailer(buf []byte, freelist []uint32) {
	off := len(buf) - TrailerSize
	binary.LittleEndian.PutUint32(buf[off+offMagic:], trailerMagic)
	binary.LittleEndian.PutUint64(buf[off+offTotalRows:], s.TotalRows)
	binary.LittleEndian.PutUint32(buf[off+offIDMin:], s.IDMin)
	binary.LittleEndian.PutUint32(buf[off+offIDMax:], s.IDMax)
	var valid uint32
	if s.Valid {
		valid = 1
	}
	binary.LittleEndian.PutUint32(buf[off+offValid:], valid)

	putBitset(buf[off+offIDCard:], s.idCard)
	putBitset(buf[off+offUserCard:], s.usernameCard)
	putBitset(buf[off+offEmailCard:], s.emailCard)

	n := len(freelist)
	if n > trailerMaxFreePages {
		n = trailerMaxFreePages
	}
	binary.LittleEndian.PutUint32(buf[off+offFreeCount:], uint32(n))
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[off+offFreeList+i*4:], freelist[i])
	}
}

func putBitset(dst []byte, bs *bitset.BitSet) {
	words := bs.Bytes()
	for i := 0; i < trailerBitsetWords; i++ {
		var w uint64
		if i < len(words) {
			w = words[i]
		}
		binary.LittleEndian.PutUint64(dst[i*8:], w)
	}
}

func readBitset(src []byte) *bitset.BitSet {
	words := make([]uint64, trailerBitsetWords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(src[i*8:])
	}
	return bitset.From(words)
}

// LoadTrailer reads a snapshot back out of page 0's tail. ok is false
// when the magic doesn't match — a fresh database, or a page 0 that
// hasn't been through a trailer-writing shutdown yet — in which case the
// caller should fall back to a fresh Statistics and an empty freelist.
func LoadTrailer(buf []byte) (s *Statistics, freelist []uint32, ok bool) {
	off := len(buf) - TrailerSize
	magic := binary.LittleEndian.Uint32(buf[off+offMagic:])
	if magic != trailerMagic {
		return New(), nil, false
	}

	s = New()
	s.TotalRows = binary.LittleEndian.Uint64(buf[off+offTotalRows:])
	s.IDMin = binary.LittleEndian.Uint32(buf[off+offIDMin:])
	s.IDMax = binary.LittleEndian.Uint32(buf[off+offIDMax:])
	s.Valid = binary.LittleEndian.Uint32(buf[off+offValid:]) != 0

	s.idCard = readBitset(buf[off+offIDCard:])
	s.usernameCard = readBitset(buf[off+offUserCard:])
	s.emailCard = readBitset(buf[off+offEmailCard:])

	n := binary.LittleEndian.Uint32(buf[off+offFreeCount:])
	if n > trailerMaxFreePages {
		n = trailerMaxFreePages
	}
	freelist = make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		freelist[i] = binary.LittleEndian.Uint32(buf[off+offFreeList+int(i)*4:])
	}
	return s, freelist, true
}
