// Package exec tokenizes and runs the handful of statements the shell
// understands: INSERT, SELECT, UPDATE, DELETE, and the transaction
// verbs BEGIN/COMMIT/ROLLBACK. SQL verbs are matched lowercase-only,
// mirroring the grammar's own keyword convention; transaction verbs and
// meta-commands (handled one level up, in cmd/btreedb) are matched
// case-insensitively since they're operator-facing, not data syntax.
package exec

import (
	"fmt"
	"strconv"
	"strings"

	"btreedb/internal/dberr"
	"btreedb/internal/node"
	"btreedb/internal/where"
)

type StatementType int

const (
	StmtInsert StatementType = iota
	StmtSelect
	StmtUpdate
	StmtDelete
	StmtBegin
	StmtCommit
	StmtRollback
)

// DeleteMaxRows bounds how many rows a single DELETE can remove, so a
// forgotten WHERE clause can't silently wipe an arbitrarily large table
// in one statement.
const DeleteMaxRows = 1000

// Statement is the parsed, ready-to-run form of one input line.
type Statement struct {
	Type  StatementType
	Row   node.Row    // StmtInsert
	Where *where.Expr // StmtSelect/StmtUpdate/StmtDelete; nil means unfiltered

	SetUsername *string // StmtUpdate: nil means leave the field unchanged
	SetEmail    *string
}

// Prepare tokenizes and validates line into a Statement.
func Prepare(line string) (*Statement, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, dberr.New(dberr.UnrecognizedStatement, "empty statement")
	}

	switch strings.ToLower(fields[0]) {
	case "begin":
		return &Statement{Type: StmtBegin}, nil
	case "commit":
		return &Statement{Type: StmtCommit}, nil
	case "rollback":
		return &Statement{Type: StmtRollback}, nil
	}

	switch fields[0] {
	case "insert":
		return prepareInsert(fields)
	case "select":
		return prepareSelect(line, fields)
	case "update":
		return prepareUpdate(line, fields)
	case "delete":
		return prepareDelete(line, fields)
	default:
		return nil, dberr.New(dberr.UnrecognizedStatement, "unrecognized statement %q", fields[0])
	}
}

func prepareInsert(fields []string) (*Statement, error) {
	if len(fields) != 4 {
		return nil, dberr.New(dberr.PrepareSyntaxError, "usage: insert <id> <username> <email>")
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, dberr.New(dberr.PrepareSyntaxError, "invalid id %q", fields[1])
	}
	if id <= 0 {
		return nil, dberr.New(dberr.NegativeId, "id must be positive, got %d", id)
	}
	if len(fields[2]) > node.MaxUsernameLen {
		return nil, dberr.New(dberr.StringTooLong, "username exceeds %d bytes", node.MaxUsernameLen)
	}
	if len(fields[3]) > node.MaxEmailLen {
		return nil, dberr.New(dberr.StringTooLong, "email exceeds %d bytes", node.MaxEmailLen)
	}
	return &Statement{
		Type: StmtInsert,
		Row:  node.Row{ID: uint32(id), Username: fields[2], Email: fields[3]},
	}, nil
}

// splitWhere finds a standalone "where" keyword in the remainder of a
// statement (after the leading verb and any clause-specific words
// already consumed) and returns the WHERE clause text, if any.
func splitWhere(rest string) (before, clause string, hasWhere bool) {
	lower := strings.ToLower(rest)
	idx := -1
	for _, tok := range []string{" where ", " where("} {
		if i := strings.Index(lower, tok); i >= 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return rest, "", false
	}
	return rest[:idx], rest[idx+len(" where"):], true
}

func prepareSelect(line string, fields []string) (*Statement, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
	_, clause, hasWhere := splitWhere(" " + rest)
	stmt := &Statement{Type: StmtSelect}
	if hasWhere {
		expr, err := where.Parse(clause)
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
	}
	return stmt, nil
}

// prepareDelete parses the legacy positional "delete <id>" or the
// "delete where <expr>" form.
func prepareDelete(line string, fields []string) (*Statement, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
	if rest == "" {
		return nil, dberr.New(dberr.PrepareSyntaxError, "usage: delete <id> | delete where <expr>")
	}

	_, clause, hasWhere := splitWhere(" " + rest)
	stmt := &Statement{Type: StmtDelete}
	if hasWhere {
		expr, err := where.Parse(clause)
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
		return stmt, nil
	}

	idFields := strings.Fields(rest)
	if len(idFields) != 1 {
		return nil, dberr.New(dberr.PrepareSyntaxError, "usage: delete <id> | delete where <expr>")
	}
	expr, err := idEqualityWhere(idFields[0])
	if err != nil {
		return nil, err
	}
	stmt.Where = expr
	return stmt, nil
}

// prepareUpdate parses either the legacy positional
// "update <id> <username|-> <email|->" form, or
// "update <username|-> <email|-> where <expr>"; "-" leaves a field
// unchanged.
func prepareUpdate(line string, fields []string) (*Statement, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
	before, clause, hasWhere := splitWhere(" " + rest)
	beforeFields := strings.Fields(strings.TrimSpace(before))

	stmt := &Statement{Type: StmtUpdate}

	if hasWhere {
		if len(beforeFields) != 2 {
			return nil, dberr.New(dberr.PrepareSyntaxError, "usage: update <username|-> <email|-> where <expr>")
		}
		if err := applyUpdateField(stmt, "username", beforeFields[0]); err != nil {
			return nil, err
		}
		if err := applyUpdateField(stmt, "email", beforeFields[1]); err != nil {
			return nil, err
		}
		expr, err := where.Parse(clause)
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
		return stmt, nil
	}

	if len(beforeFields) != 3 {
		return nil, dberr.New(dberr.PrepareSyntaxError, "usage: update <id> <username|-> <email|->")
	}
	if err := applyUpdateField(stmt, "username", beforeFields[1]); err != nil {
		return nil, err
	}
	if err := applyUpdateField(stmt, "email", beforeFields[2]); err != nil {
		return nil, err
	}
	expr, err := idEqualityWhere(beforeFields[0])
	if err != nil {
		return nil, err
	}
	stmt.Where = expr
	return stmt, nil
}

// idEqualityWhere synthesizes an "id = <id>" WHERE expression for the
// legacy positional UPDATE/DELETE forms, which select by id directly.
func idEqualityWhere(idToken string) (*where.Expr, error) {
	id, err := strconv.ParseUint(idToken, 10, 32)
	if err != nil {
		return nil, dberr.New(dberr.PrepareSyntaxError, "invalid id %q", idToken)
	}
	return where.Parse(fmt.Sprintf("id = %d", id))
}

// applyUpdateField sets stmt's SetUsername/SetEmail from a single
// positional token; "-" means leave the column unchanged.
func applyUpdateField(stmt *Statement, col, token string) error {
	if token == "-" {
		return nil
	}
	val := strings.Trim(token, `'"`)
	switch col {
	case "username":
		if len(val) > node.MaxUsernameLen {
			return dberr.New(dberr.StringTooLong, "username exceeds %d bytes", node.MaxUsernameLen)
		}
		stmt.SetUsername = &val
	case "email":
		if len(val) > node.MaxEmailLen {
			return dberr.New(dberr.StringTooLong, "email exceeds %d bytes", node.MaxEmailLen)
		}
		stmt.SetEmail = &val
	}
	return nil
}
