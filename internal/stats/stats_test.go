package stats

import (
	"testing"

	"btreedb/internal/node"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(id uint32, username, email string) node.Row {
	return node.Row{ID: id, Username: username, Email: email}
}

func TestObserveInsertAndDeleteTrackRowCount(t *testing.T) {
	s := New()
	s.ObserveInsert(row(1, "a", "a@x"))
	s.ObserveInsert(row(2, "b", "b@x"))
	s.ObserveInsert(row(3, "c", "c@x"))
	assert.Equal(t, uint64(3), s.TotalRows)

	s.ObserveDelete(2)
	assert.Equal(t, uint64(2), s.TotalRows)
}

func TestObserveInsertTracksIDBounds(t *testing.T) {
	s := New()
	s.ObserveInsert(row(10, "a", "a@x"))
	s.ObserveInsert(row(3, "b", "b@x"))
	s.ObserveInsert(row(7, "c", "c@x"))
	require.True(t, s.Valid)
	assert.Equal(t, uint32(3), s.IDMin)
	assert.Equal(t, uint32(10), s.IDMax)
}

func TestObserveDeleteNeverUnderflows(t *testing.T) {
	s := New()
	s.ObserveDelete(1)
	assert.Equal(t, uint64(0), s.TotalRows)
}

func TestObserveDeleteResetsWhenTableEmpties(t *testing.T) {
	s := New()
	s.ObserveInsert(row(5, "a", "a@x"))
	s.ObserveDelete(5)
	assert.Equal(t, uint64(0), s.TotalRows)
	assert.False(t, s.Valid)
	assert.Equal(t, uint32(0), s.IDMin)
	assert.Equal(t, uint32(0), s.IDMax)
}

func TestPerColumnCardinalityRoughlyTracksDistinctValues(t *testing.T) {
	s := New()
	for i := uint32(0); i < 500; i++ {
		s.ObserveInsert(row(i, "u", "dup@x")) // 500 distinct ids, 1 distinct username/email
	}
	// A 1024-bucket sketch loses distinct keys to hash collisions, so
	// this only checks the estimate is in a sane ballpark, not exact.
	assert.Greater(t, s.IDCardinality(), uint64(100))
	assert.Less(t, s.UsernameCardinality(), uint64(10))
	assert.Less(t, s.EmailCardinality(), uint64(10))
}

func TestTrailerRoundTrip(t *testing.T) {
	s := New()
	s.ObserveInsert(row(10, "alice", "alice@x"))
	s.ObserveInsert(row(20, "bob", "bob@x"))
	s.ObserveInsert(row(30, "carol", "carol@x"))

	buf := make([]byte, 4096)
	s.PersistTrailer(buf, []uint32{3, 7, 9})

	loaded, freelist, ok := LoadTrailer(buf)
	require.True(t, ok)
	assert.Equal(t, s.TotalRows, loaded.TotalRows)
	assert.Equal(t, s.IDMin, loaded.IDMin)
	assert.Equal(t, s.IDMax, loaded.IDMax)
	assert.Equal(t, s.Valid, loaded.Valid)
	assert.Equal(t, s.IDCardinality(), loaded.IDCardinality())
	assert.Equal(t, s.UsernameCardinality(), loaded.UsernameCardinality())
	assert.Equal(t, s.EmailCardinality(), loaded.EmailCardinality())
	assert.Equal(t, []uint32{3, 7, 9}, freelist)
}

func TestLoadTrailerRejectsMissingMagic(t *testing.T) {
	buf := make([]byte, 4096)
	_, _, ok := LoadTrailer(buf)
	assert.False(t, ok)
}

func TestTrailerFreelistTruncatesAtBound(t *testing.T) {
	s := New()
	buf := make([]byte, 4096)
	many := make([]uint32, trailerMaxFreePages+10)
	for i := range many {
		many[i] = uint32(i)
	}
	s.PersistTrailer(buf, many)
	_, freelist, ok := LoadTrailer(buf)
	require.True(t, ok)
	assert.Len(t, freelist, trailerMaxFreePages)
}
