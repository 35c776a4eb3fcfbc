package where

import (
	"testing"

	"btreedb/internal/node"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(id uint32, username, email string) node.Row {
	return node.Row{ID: id, Username: username, Email: email}
}

func TestBasicEquality(t *testing.T) {
	e, err := Parse("id = 5")
	require.NoError(t, err)
	ok, err := e.Eval(row(5, "a", "b"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Eval(row(6, "a", "b"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStringComparison(t *testing.T) {
	e, err := Parse("username = 'alice'")
	require.NoError(t, err)
	ok, err := e.Eval(row(1, "alice", "x"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Eval(row(1, "bob", "x"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAndOrPrecedenceAndGrouping(t *testing.T) {
	// AND binds tighter than OR: "id=1 or id=2 and username='x'" means
	// id=1 OR (id=2 AND username='x').
	e, err := Parse("id = 1 or id = 2 and username = 'x'")
	require.NoError(t, err)

	ok, err := e.Eval(row(1, "anything", "e"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Eval(row(2, "x", "e"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Eval(row(2, "y", "e"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParenthesesOverridePrecedence(t *testing.T) {
	e, err := Parse("(id = 1 or id = 2) and username = 'x'")
	require.NoError(t, err)

	ok, err := e.Eval(row(1, "x", "e"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Eval(row(1, "y", "e"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRangeOperators(t *testing.T) {
	e, err := Parse("id >= 10")
	require.NoError(t, err)
	ok, err := e.Eval(row(10, "a", "b"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.Eval(row(9, "a", "b"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyntaxErrors(t *testing.T) {
	cases := []string{
		"",
		"id =",
		"id == 1",
		"(id = 1",
		"id = 1 and",
		"bogus + 1",
	}
	for _, c := range cases {
		_, err := Parse(c)
		assert.Error(t, err, "expected error for %q", c)
	}
}

func TestIndexableEquality(t *testing.T) {
	e, err := Parse("id = 42")
	require.NoError(t, err)
	key, ok := e.IndexableEquality()
	assert.True(t, ok)
	assert.Equal(t, uint32(42), key)

	e2, err := Parse("id = 1 and username = 'a'")
	require.NoError(t, err)
	_, ok = e2.IndexableEquality()
	assert.False(t, ok)
}

func TestIndexableRange(t *testing.T) {
	e, err := Parse("id > 10")
	require.NoError(t, err)
	op, key, ok := e.IndexableRange()
	assert.True(t, ok)
	assert.Equal(t, Gt, op)
	assert.Equal(t, uint32(10), key)

	eq, err := Parse("id = 10")
	require.NoError(t, err)
	_, _, ok = eq.IndexableRange()
	assert.False(t, ok)
}

func TestExprNodeBudgetEnforced(t *testing.T) {
	// 40 "or"-joined clauses (79 arena nodes): comfortably past config.MaxExprNodes (30).
	clause := "id = 0"
	for i := 1; i < 40; i++ {
		clause += " or id = 0"
	}
	_, err := Parse(clause)
	assert.Error(t, err)
}
