package node

import (
	"testing"

	"btreedb/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	r := Row{ID: 7, Username: "alice", Email: "alice@example.com"}
	buf := make([]byte, config.RowSize)
	require.NoError(t, SerializeRow(r, buf))

	got, err := DeserializeRow(buf)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestSerializeRowRejectsWrongBufferSize(t *testing.T) {
	r := Row{ID: 1, Username: "bob", Email: "bob@example.com"}
	err := SerializeRow(r, make([]byte, config.RowSize-1))
	assert.Error(t, err)
}

func TestSerializeRowRejectsOversizedFields(t *testing.T) {
	buf := make([]byte, config.RowSize)
	longUsername := Row{ID: 1, Username: string(make([]byte, MaxUsernameLen+1)), Email: "a@b.com"}
	assert.Error(t, SerializeRow(longUsername, buf))

	longEmail := Row{ID: 1, Username: "a", Email: string(make([]byte, MaxEmailLen+1))}
	assert.Error(t, SerializeRow(longEmail, buf))
}

func TestDeserializeRowTrimsAtNUL(t *testing.T) {
	buf := make([]byte, config.RowSize)
	require.NoError(t, SerializeRow(Row{ID: 2, Username: "x", Email: "y"}, buf))
	got, err := DeserializeRow(buf)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Username)
	assert.Equal(t, "y", got.Email)
}
