package dberr

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducesMatchingKind(t *testing.T) {
	err := New(ExecuteKeyNotFound, "key %d missing", 7)
	assert.True(t, Is(err, ExecuteKeyNotFound))
	assert.False(t, Is(err, ExecuteTableFull))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ShortWrite, cause, "flush page")
	assert.True(t, Is(err, ShortWrite))
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	err := New(CorruptFile, "bad header")
	k, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, CorruptFile, k)

	_, ok = KindOf(errors.New("plain error"))
	assert.False(t, ok)
}

func TestFatalKinds(t *testing.T) {
	assert.True(t, CorruptFile.Fatal())
	assert.True(t, ShortWrite.Fatal())
	assert.True(t, PageOOB.Fatal())
	assert.True(t, InvalidPageAccess.Fatal())
	assert.True(t, AllocFail.Fatal())
	assert.False(t, ExecuteKeyNotFound.Fatal())
}

func TestErrorCarriesStackViaPkgErrors(t *testing.T) {
	err := New(CorruptFile, "boom")
	var withStack interface{ StackTrace() pkgerrors.StackTrace }
	assert.True(t, errors.As(err, &withStack) || pkgerrors.Cause(err) != nil)
}
