package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareInsert(t *testing.T) {
	stmt, err := Prepare("insert 1 alice alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, StmtInsert, stmt.Type)
	assert.Equal(t, uint32(1), stmt.Row.ID)
	assert.Equal(t, "alice", stmt.Row.Username)
	assert.Equal(t, "alice@example.com", stmt.Row.Email)
}

func TestPrepareInsertRejectsNegativeId(t *testing.T) {
	_, err := Prepare("insert -1 alice a@b.com")
	assert.Error(t, err)
}

func TestPrepareInsertRejectsWrongArity(t *testing.T) {
	_, err := Prepare("insert 1 alice")
	assert.Error(t, err)
}

func TestPrepareSelectWithAndWithoutWhere(t *testing.T) {
	stmt, err := Prepare("select")
	require.NoError(t, err)
	assert.Equal(t, StmtSelect, stmt.Type)
	assert.Nil(t, stmt.Where)

	stmt, err = Prepare("select where id = 3")
	require.NoError(t, err)
	require.NotNil(t, stmt.Where)
}

func TestPrepareDeleteRequiresIdOrWhere(t *testing.T) {
	_, err := Prepare("delete")
	assert.Error(t, err)
}

func TestPrepareDeletePositionalId(t *testing.T) {
	stmt, err := Prepare("delete 5")
	require.NoError(t, err)
	assert.Equal(t, StmtDelete, stmt.Type)
	require.NotNil(t, stmt.Where)
	key, ok := stmt.Where.IndexableEquality()
	require.True(t, ok)
	assert.Equal(t, uint32(5), key)
}

func TestPrepareDeleteWhereClause(t *testing.T) {
	stmt, err := Prepare("delete where id > 2")
	require.NoError(t, err)
	assert.Equal(t, StmtDelete, stmt.Type)
	require.NotNil(t, stmt.Where)
}

func TestPrepareUpdatePositionalLegacyForm(t *testing.T) {
	stmt, err := Prepare("update 5 bob -")
	require.NoError(t, err)
	assert.Equal(t, StmtUpdate, stmt.Type)
	require.NotNil(t, stmt.SetUsername)
	assert.Equal(t, "bob", *stmt.SetUsername)
	assert.Nil(t, stmt.SetEmail)
	require.NotNil(t, stmt.Where)
	key, ok := stmt.Where.IndexableEquality()
	require.True(t, ok)
	assert.Equal(t, uint32(5), key)
}

func TestPrepareUpdatePositionalBothDashesIsNoop(t *testing.T) {
	stmt, err := Prepare("update 5 - -")
	require.NoError(t, err)
	assert.Nil(t, stmt.SetUsername)
	assert.Nil(t, stmt.SetEmail)
}

func TestPrepareUpdateWhereFormAssignsOnlyFlaggedFields(t *testing.T) {
	stmt, err := Prepare(`update - "b@x" where id = 5`)
	require.NoError(t, err)
	assert.Equal(t, StmtUpdate, stmt.Type)
	assert.Nil(t, stmt.SetUsername)
	require.NotNil(t, stmt.SetEmail)
	assert.Equal(t, "b@x", *stmt.SetEmail)
	require.NotNil(t, stmt.Where)
}

func TestPrepareUpdateRequiresIdOrWhere(t *testing.T) {
	_, err := Prepare("update bob a@b.com")
	assert.Error(t, err)
}

func TestPrepareTransactionVerbsCaseInsensitive(t *testing.T) {
	for _, line := range []string{"begin", "BEGIN", "Begin"} {
		stmt, err := Prepare(line)
		require.NoError(t, err)
		assert.Equal(t, StmtBegin, stmt.Type)
	}
}

func TestPrepareSQLVerbsAreLowercaseOnly(t *testing.T) {
	_, err := Prepare("INSERT 1 a b")
	assert.Error(t, err)
}

func TestPrepareUnrecognizedStatement(t *testing.T) {
	_, err := Prepare("frobnicate")
	assert.Error(t, err)
}
