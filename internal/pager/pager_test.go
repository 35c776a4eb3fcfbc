package pager

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempPager(t *testing.T) *Pager {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "btreedb-*.db")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	p, err := Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestAllocateExtendsFile(t *testing.T) {
	p := tempPager(t)
	n0, err := p.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), n0)

	n1, err := p.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n1)
	assert.Equal(t, uint32(2), p.NumPages())
}

func TestGetFaultsInZeroedPage(t *testing.T) {
	p := tempPager(t)
	_, err := p.Allocate()
	require.NoError(t, err)

	pg, err := p.Get(0)
	require.NoError(t, err)
	for _, b := range pg.Data {
		assert.Equal(t, byte(0), b)
	}
}

func TestWriteSurvivesFlushAndReopen(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "btreedb-*.db")
	require.NoError(t, err)
	path := f.Name()
	require.NoError(t, f.Close())

	p, err := Open(path)
	require.NoError(t, err)
	_, err = p.Allocate()
	require.NoError(t, err)
	pg, err := p.Get(0)
	require.NoError(t, err)
	pg.Data[0] = 0xAB
	pg.Dirty = true
	require.NoError(t, p.Close())

	p2, err := Open(path)
	require.NoError(t, err)
	defer p2.Close()
	pg2, err := p2.Get(0)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), pg2.Data[0])
}

func TestAllocateFailsAtTableMax(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "btreedb-*.db")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	p, err := OpenWithLimit(f.Name(), 2)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Allocate()
	require.NoError(t, err)
	_, err = p.Allocate()
	require.NoError(t, err)
	_, err = p.Allocate()
	assert.Error(t, err)
}

func TestFreelistReusesPages(t *testing.T) {
	p := tempPager(t)
	n0, err := p.Allocate()
	require.NoError(t, err)
	_, err = p.Allocate()
	require.NoError(t, err)

	p.Free(n0)
	reused, err := p.Allocate()
	require.NoError(t, err)
	assert.Equal(t, n0, reused)
}

func TestOpenRejectsCorruptFileSize(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "btreedb-*.db")
	require.NoError(t, err)
	_, err = f.Write(make([]byte, PageSize+1))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(f.Name())
	assert.Error(t, err)
}
