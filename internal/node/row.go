// Package node implements the fixed byte layouts for the common node
// header, leaf body, and internal body, plus the Row codec. All
// accessors return references into the page buffer; mutators write
// through — there is no intermediate in-memory representation to drift
// out of sync with the bytes that actually get flushed.
package node

import (
	"encoding/binary"

	"btreedb/internal/config"
	"btreedb/internal/dberr"
)

// Row is the hard-coded schema: id>0, username<=32 bytes, email<=255 bytes.
type Row struct {
	ID       uint32
	Username string
	Email    string
}

const (
	MaxUsernameLen = config.UsernameSize - 1
	MaxEmailLen    = config.EmailSize - 1
)

// SerializeRow writes id, username, and email into dst, which must be
// exactly config.RowSize bytes. Strings are zero-padded within their
// fixed field.
func SerializeRow(r Row, dst []byte) error {
	if len(dst) != config.RowSize {
		return dberr.New(dberr.CorruptFile, "row buffer is %d bytes, want %d", len(dst), config.RowSize)
	}
	if len(r.Username) > MaxUsernameLen {
		return dberr.New(dberr.StringTooLong, "username %q exceeds %d bytes", r.Username, MaxUsernameLen)
	}
	if len(r.Email) > MaxEmailLen {
		return dberr.New(dberr.StringTooLong, "email %q exceeds %d bytes", r.Email, MaxEmailLen)
	}

	for i := range dst {
		dst[i] = 0
	}
	binary.LittleEndian.PutUint32(dst[0:4], r.ID)
	copy(dst[4:4+config.UsernameSize], r.Username)
	copy(dst[4+config.UsernameSize:4+config.UsernameSize+config.EmailSize], r.Email)
	return nil
}

// DeserializeRow reads a row back out of a config.RowSize buffer.
func DeserializeRow(src []byte) (Row, error) {
	if len(src) != config.RowSize {
		return Row{}, dberr.New(dberr.CorruptFile, "row buffer is %d bytes, want %d", len(src), config.RowSize)
	}
	id := binary.LittleEndian.Uint32(src[0:4])
	username := cstring(src[4 : 4+config.UsernameSize])
	email := cstring(src[4+config.UsernameSize : 4+config.UsernameSize+config.EmailSize])
	return Row{ID: id, Username: username, Email: email}, nil
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
