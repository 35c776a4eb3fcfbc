package txn

import (
	"os"
	"testing"

	"btreedb/internal/pager"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempManager(t *testing.T) (*Manager, *pager.Pager) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "btreedb-*.db")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	p, err := pager.Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return NewManager(p), p
}

func TestCommitAppliesShadowWrites(t *testing.T) {
	m, p := tempManager(t)
	n, err := m.Allocate()
	require.NoError(t, err)

	require.NoError(t, m.Begin())
	pg, err := m.PageForWrite(n)
	require.NoError(t, err)
	pg.Data[0] = 0x42
	require.NoError(t, m.Commit())

	real, err := p.Get(n)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), real.Data[0])
}

func TestRollbackDiscardsShadowWrites(t *testing.T) {
	m, p := tempManager(t)
	n, err := m.Allocate()
	require.NoError(t, err)
	real, err := p.Get(n)
	require.NoError(t, err)
	real.Data[0] = 0x00
	real.Dirty = true

	require.NoError(t, m.Begin())
	pg, err := m.PageForWrite(n)
	require.NoError(t, err)
	pg.Data[0] = 0x99
	require.NoError(t, m.Rollback())

	got, err := p.Get(n)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), got.Data[0])
}

func TestNestedBeginFails(t *testing.T) {
	m, _ := tempManager(t)
	require.NoError(t, m.Begin())
	assert.Error(t, m.Begin())
}

func TestCommitWithoutBeginFails(t *testing.T) {
	m, _ := tempManager(t)
	assert.Error(t, m.Commit())
	assert.Error(t, m.Rollback())
}

func TestReadYourOwnWritesInsideTransaction(t *testing.T) {
	m, _ := tempManager(t)
	n, err := m.Allocate()
	require.NoError(t, err)

	require.NoError(t, m.Begin())
	pg, err := m.PageForWrite(n)
	require.NoError(t, err)
	pg.Data[0] = 7

	read, err := m.PageForRead(n)
	require.NoError(t, err)
	assert.Equal(t, byte(7), read.Data[0])
}

func TestCloseForcedCommitsOpenTransaction(t *testing.T) {
	m, p := tempManager(t)
	n, err := m.Allocate()
	require.NoError(t, err)

	require.NoError(t, m.Begin())
	pg, err := m.PageForWrite(n)
	require.NoError(t, err)
	pg.Data[0] = 55

	require.NoError(t, m.CloseForced())
	assert.False(t, m.Active())

	real, err := p.Get(n)
	require.NoError(t, err)
	assert.Equal(t, byte(55), real.Data[0])
}

func TestRollbackFreesAllocatedPages(t *testing.T) {
	m, _ := tempManager(t)
	require.NoError(t, m.Begin())
	n, err := m.Allocate()
	require.NoError(t, err)
	require.NoError(t, m.Rollback())

	require.NoError(t, m.Begin())
	reused, err := m.Allocate()
	require.NoError(t, err)
	assert.Equal(t, n, reused)
	require.NoError(t, m.Rollback())
}
