// Package planner picks between an index lookup, a bounded range scan,
// or a full table scan for a SELECT's WHERE clause by the clause's
// shape, and estimates the chosen plan's rows and cost from the
// per-column cardinality estimates and id bounds in internal/stats.
// Plans are not compared against each other by cost.
package planner

import (
	"math"

	"btreedb/internal/stats"
	"btreedb/internal/where"
)

// Type identifies how the executor should drive its cursor.
type Type int

const (
	FullScan Type = iota
	IndexLookup
	RangeScan
)

func (t Type) String() string {
	switch t {
	case IndexLookup:
		return "IndexLookup"
	case RangeScan:
		return "RangeScan"
	default:
		return "FullScan"
	}
}

// Plan is the chosen access strategy plus the estimates that justified it.
type Plan struct {
	Type          Type
	Key           uint32
	Op            where.CmpOp
	EstimatedRows uint64
	EstimatedCost float64
}

// Choose selects a plan for expr (nil meaning an unfiltered SELECT)
// against the given table statistics.
func Choose(expr *where.Expr, st *stats.Statistics) Plan {
	if expr == nil {
		rows := st.TotalRows
		return Plan{Type: FullScan, EstimatedRows: rows, EstimatedCost: fullScanCost(rows)}
	}

	if key, ok := expr.IndexableEquality(); ok {
		return Plan{Type: IndexLookup, Key: key, EstimatedRows: 1, EstimatedCost: indexLookupCost(st.TotalRows)}
	}

	if op, key, ok := expr.IndexableRange(); ok {
		rows := rangeSelectivity(st, op, key)
		return Plan{Type: RangeScan, Key: key, Op: op, EstimatedRows: rows, EstimatedCost: rangeScanCost(st.TotalRows, rows)}
	}

	rows := fullScanRows(expr, st)
	return Plan{Type: FullScan, EstimatedRows: rows, EstimatedCost: fullScanCost(st.TotalRows)}
}

// indexLookupCost approximates a root-to-leaf descent: O(log n).
func indexLookupCost(rowCount uint64) float64 {
	if rowCount < 2 {
		return 1
	}
	return math.Log2(float64(rowCount))
}

// fullScanCost is linear in row count: every leaf gets visited.
func fullScanCost(rowCount uint64) float64 {
	return float64(rowCount)
}

// rangeScanCost is a descent plus a linear walk over the estimated
// number of qualifying rows.
func rangeScanCost(rowCount, estRows uint64) float64 {
	return indexLookupCost(rowCount) + float64(estRows)
}

// fullScanRows estimates how many rows a non-indexable WHERE clause
// will keep: 1/card(field) for a single equality on any column, 0.5 for
// a single non-id range predicate, and a flat 0.1 for anything compound
// (AND/OR), since cardinality sketches don't compose across columns.
func fullScanRows(expr *where.Expr, st *stats.Statistics) uint64 {
	if expr.IsCompound() {
		return uint64(float64(st.TotalRows) * 0.1)
	}
	cmp, ok := expr.SingleComparison()
	if !ok {
		return st.TotalRows
	}
	switch {
	case cmp.Op == where.Eq:
		card := columnCardinality(cmp.Column, st)
		if card == 0 {
			return st.TotalRows
		}
		return st.TotalRows / card
	case cmp.Column != "id":
		return st.TotalRows / 2
	default:
		return st.TotalRows
	}
}

func columnCardinality(column string, st *stats.Statistics) uint64 {
	switch column {
	case "id":
		return st.IDCardinality()
	case "username":
		return st.UsernameCardinality()
	case "email":
		return st.EmailCardinality()
	default:
		return 0
	}
}

// rangeSelectivity applies total_rows*(end-start+1)/(id_max-id_min+1)
// over the half of the id domain the predicate keeps. Falls back to
// half the table when stats haven't observed any rows yet, or the id
// domain has collapsed to a single value.
func rangeSelectivity(st *stats.Statistics, op where.CmpOp, key uint32) uint64 {
	if !st.Valid || st.IDMax <= st.IDMin {
		return st.TotalRows / 2
	}
	domain := float64(st.IDMax-st.IDMin) + 1

	var start, end uint32
	switch op {
	case where.Gt:
		start, end = key+1, st.IDMax
	case where.Ge:
		start, end = key, st.IDMax
	case where.Lt:
		if key == 0 {
			return 0
		}
		start, end = st.IDMin, key-1
	case where.Le:
		start, end = st.IDMin, key
	default:
		return st.TotalRows / 2
	}
	if end < start {
		return 0
	}
	span := float64(end-start) + 1
	return uint64(float64(st.TotalRows) * span / domain)
}
