package exec

import (
	"btreedb/internal/btree"
	"btreedb/internal/dblog"
	"btreedb/internal/node"
	"btreedb/internal/planner"
	"btreedb/internal/stats"
	"btreedb/internal/txn"
	"btreedb/internal/where"
)

// Result is what running a Statement produced: rows for a SELECT, a
// human-readable message otherwise, and how many rows a mutation touched.
type Result struct {
	Rows         []node.Row
	Message      string
	RowsAffected int
	Plan         *planner.Plan
}

// Executor runs prepared statements against one table, maintaining its
// cardinality statistics as rows come and go and wrapping standalone
// mutations in an implicit transaction when none is already open.
type Executor struct {
	tree  *btree.Tree
	txm   *txn.Manager
	stats *stats.Statistics
}

// New binds an Executor to the given tree, transaction manager, and
// statistics tracker.
func New(tree *btree.Tree, txm *txn.Manager, st *stats.Statistics) *Executor {
	return &Executor{tree: tree, txm: txm, stats: st}
}

// Execute runs stmt, autocommitting mutations when no explicit
// transaction is active.
func (ex *Executor) Execute(stmt *Statement) (Result, error) {
	switch stmt.Type {
	case StmtBegin:
		if err := ex.txm.Begin(); err != nil {
			return Result{}, err
		}
		return Result{Message: "transaction started"}, nil
	case StmtCommit:
		if err := ex.txm.Commit(); err != nil {
			return Result{}, err
		}
		return Result{Message: "transaction committed"}, nil
	case StmtRollback:
		if err := ex.txm.Rollback(); err != nil {
			return Result{}, err
		}
		return Result{Message: "transaction rolled back"}, nil
	case StmtSelect:
		return ex.execSelect(stmt)
	}

	autocommit := !ex.txm.Active()
	if autocommit {
		if err := ex.txm.Begin(); err != nil {
			return Result{}, err
		}
	}

	var res Result
	var err error
	switch stmt.Type {
	case StmtInsert:
		res, err = ex.execInsert(stmt)
	case StmtUpdate:
		res, err = ex.execUpdate(stmt)
	case StmtDelete:
		res, err = ex.execDelete(stmt)
	}

	if autocommit {
		if err != nil {
			if rbErr := ex.txm.Rollback(); rbErr != nil {
				dblog.L().Errorw("rollback after failed statement also failed", "error", rbErr)
			}
		} else {
			err = ex.txm.Commit()
		}
	}
	return res, err
}

func (ex *Executor) execInsert(stmt *Statement) (Result, error) {
	if err := ex.tree.Insert(stmt.Row.ID, stmt.Row); err != nil {
		return Result{}, err
	}
	ex.stats.ObserveInsert(stmt.Row)
	return Result{Message: "row inserted", RowsAffected: 1}, nil
}

func (ex *Executor) execSelect(stmt *Statement) (Result, error) {
	plan := planner.Choose(stmt.Where, ex.stats)
	dblog.L().Debugw("select plan chosen", "type", plan.Type.String(), "estimated_rows", plan.EstimatedRows, "estimated_cost", plan.EstimatedCost)

	var rows []node.Row
	var err error
	switch plan.Type {
	case planner.IndexLookup:
		rows, err = ex.scanIndexLookup(plan)
	case planner.RangeScan:
		rows, err = ex.scanRange(stmt, plan)
	default:
		rows, err = ex.scanFull(stmt)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Rows: rows, Plan: &plan}, nil
}

func (ex *Executor) scanIndexLookup(plan planner.Plan) ([]node.Row, error) {
	cur, found, err := ex.tree.Search(plan.Key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	row, err := cur.Row()
	if err != nil {
		return nil, err
	}
	return []node.Row{row}, nil
}

func (ex *Executor) scanRange(stmt *Statement, plan planner.Plan) ([]node.Row, error) {
	var startKey uint32
	switch plan.Op {
	case where.Gt:
		startKey = plan.Key + 1
	case where.Ge:
		startKey = plan.Key
	default:
		startKey = 0
	}
	cur, err := ex.tree.CursorAtKey(startKey)
	if err != nil {
		return nil, err
	}

	var rows []node.Row
	for !cur.End() {
		row, err := cur.Row()
		if err != nil {
			return nil, err
		}
		keep, err := stmt.Where.Eval(row)
		if err != nil {
			return nil, err
		}
		if keep {
			rows = append(rows, row)
		} else if plan.Op == where.Lt || plan.Op == where.Le {
			break // ascending keys: once a Lt/Le bound fails, every later row fails too
		}
		if err := cur.Advance(); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (ex *Executor) scanFull(stmt *Statement) ([]node.Row, error) {
	cur, err := ex.tree.CursorAtStart()
	if err != nil {
		return nil, err
	}
	var rows []node.Row
	for !cur.End() {
		row, err := cur.Row()
		if err != nil {
			return nil, err
		}
		keep := true
		if stmt.Where != nil {
			keep, err = stmt.Where.Eval(row)
			if err != nil {
				return nil, err
			}
		}
		if keep {
			rows = append(rows, row)
		}
		if err := cur.Advance(); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// execUpdate rewrites only the assigned fields of every matching row;
// id is the primary key and is never rewritten.
func (ex *Executor) execUpdate(stmt *Statement) (Result, error) {
	matches, err := ex.scanFull(&Statement{Type: StmtSelect, Where: stmt.Where})
	if err != nil {
		return Result{}, err
	}

	n := 0
	for _, row := range matches {
		updated := row
		if stmt.SetUsername != nil {
			updated.Username = *stmt.SetUsername
		}
		if stmt.SetEmail != nil {
			updated.Email = *stmt.SetEmail
		}
		if err := ex.tree.Update(row.ID, updated); err != nil {
			return Result{}, err
		}
		n++
	}
	return Result{Message: "rows updated", RowsAffected: n}, nil
}

// execDelete removes every matching row, up to DeleteMaxRows per
// statement — a missing WHERE clause can't wipe an unbounded table in
// one shot.
func (ex *Executor) execDelete(stmt *Statement) (Result, error) {
	matches, err := ex.scanFull(&Statement{Type: StmtSelect, Where: stmt.Where})
	if err != nil {
		return Result{}, err
	}

	truncated := len(matches) > DeleteMaxRows
	if truncated {
		matches = matches[:DeleteMaxRows]
		dblog.L().Warnw("delete truncated to row bound", "bound", DeleteMaxRows)
	}

	n := 0
	for _, row := range matches {
		if err := ex.tree.Delete(row.ID); err != nil {
			return Result{}, err
		}
		ex.stats.ObserveDelete(row.ID)
		n++
	}
	msg := "rows deleted"
	if truncated {
		msg = "rows deleted (truncated to delete row bound)"
	}
	return Result{Message: msg, RowsAffected: n}, nil
}
