package exec

import (
	"os"
	"testing"

	"btreedb/internal/btree"
	"btreedb/internal/pager"
	"btreedb/internal/stats"
	"btreedb/internal/txn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *Executor {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "btreedb-*.db")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	p, err := pager.Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	m := txn.NewManager(p)
	tree, err := btree.Open(m)
	require.NoError(t, err)
	return New(tree, m, stats.New())
}

func TestExecInsertAndSelect(t *testing.T) {
	ex := setup(t)
	stmt, err := Prepare("insert 1 alice alice@example.com")
	require.NoError(t, err)
	res, err := ex.Execute(stmt)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsAffected)

	stmt, err = Prepare("select")
	require.NoError(t, err)
	res, err = ex.Execute(stmt)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "alice", res.Rows[0].Username)
}

func TestExecDuplicateInsertFails(t *testing.T) {
	ex := setup(t)
	stmt, _ := Prepare("insert 1 alice a@b.com")
	_, err := ex.Execute(stmt)
	require.NoError(t, err)

	stmt, _ = Prepare("insert 1 bob b@c.com")
	_, err = ex.Execute(stmt)
	assert.Error(t, err)
}

func TestExecSelectWithWhereEquality(t *testing.T) {
	ex := setup(t)
	for i := uint32(1); i <= 5; i++ {
		stmt, _ := Prepare("insert " + itoa(i) + " u" + itoa(i) + " u@e.com")
		_, err := ex.Execute(stmt)
		require.NoError(t, err)
	}
	stmt, err := Prepare("select where id = 3")
	require.NoError(t, err)
	res, err := ex.Execute(stmt)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, uint32(3), res.Rows[0].ID)
	require.NotNil(t, res.Plan)
}

func TestExecUpdateChangesOnlyFlaggedFields(t *testing.T) {
	ex := setup(t)
	stmt, _ := Prepare("insert 1 alice a@b.com")
	_, err := ex.Execute(stmt)
	require.NoError(t, err)

	stmt, err = Prepare("update - 'new@b.com' where id = 1")
	require.NoError(t, err)
	res, err := ex.Execute(stmt)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsAffected)

	stmt, _ = Prepare("select where id = 1")
	res, err = ex.Execute(stmt)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "alice", res.Rows[0].Username)
	assert.Equal(t, "new@b.com", res.Rows[0].Email)
}

func TestExecDeleteRemovesRow(t *testing.T) {
	ex := setup(t)
	stmt, _ := Prepare("insert 1 alice a@b.com")
	_, err := ex.Execute(stmt)
	require.NoError(t, err)

	stmt, _ = Prepare("delete where id = 1")
	res, err := ex.Execute(stmt)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsAffected)

	stmt, _ = Prepare("select where id = 1")
	res, err = ex.Execute(stmt)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 0)
}

func TestExecExplicitTransactionRollback(t *testing.T) {
	ex := setup(t)
	begin, _ := Prepare("begin")
	_, err := ex.Execute(begin)
	require.NoError(t, err)

	ins, _ := Prepare("insert 1 alice a@b.com")
	_, err = ex.Execute(ins)
	require.NoError(t, err)

	rollback, _ := Prepare("rollback")
	_, err = ex.Execute(rollback)
	require.NoError(t, err)

	sel, _ := Prepare("select where id = 1")
	res, err := ex.Execute(sel)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 0)
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
