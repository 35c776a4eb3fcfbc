// Package where implements the WHERE clause grammar: an arena-indexed
// expression tree built by recursive descent (or -> and -> prim ->
// basic) and evaluated post-order against a single row. The arena is
// capped at config.MaxExprNodes so a single clause can't blow past the
// planner's fixed per-statement budget.
package where

import (
	"strconv"

	"btreedb/internal/config"
	"btreedb/internal/dberr"
	"btreedb/internal/node"
)

// CmpOp is a basic-predicate comparison operator.
type CmpOp int

const (
	Eq CmpOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func opFromText(s string) (CmpOp, error) {
	switch s {
	case "=":
		return Eq, nil
	case "!=":
		return Ne, nil
	case "<":
		return Lt, nil
	case "<=":
		return Le, nil
	case ">":
		return Gt, nil
	case ">=":
		return Ge, nil
	}
	return 0, dberr.New(dberr.PrepareSyntaxError, "unrecognized operator %q", s)
}

// NodeKind tags an arena slot as a boolean combinator or a leaf predicate.
type NodeKind int

const (
	KindOr NodeKind = iota
	KindAnd
	KindCmp
)

// literal is a comparison's right-hand side: either a string or an
// integer, set exclusively.
type literal struct {
	isString bool
	str      string
	num      int64
}

// Node is one arena slot. Left/Right are arena indices for combinators,
// -1 otherwise.
type Node struct {
	Kind        NodeKind
	Left, Right int
	Column      string
	Op          CmpOp
	Val         literal
}

// Expr is a parsed WHERE clause: a flat arena plus the index of its root.
type Expr struct {
	nodes []Node
	root  int
}

// Parse builds an Expr from a WHERE clause's raw text (not including
// the "WHERE" keyword itself).
func Parse(src string) (*Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, dberr.New(dberr.PrepareSyntaxError, "unexpected trailing input in WHERE clause")
	}
	return &Expr{nodes: p.nodes, root: root}, nil
}

type parser struct {
	toks []token
	pos  int
	nodes []Node
}

func (p *parser) cur() token { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) alloc(n Node) (int, error) {
	if len(p.nodes) >= config.MaxExprNodes {
		return 0, dberr.New(dberr.PrepareSyntaxError, "WHERE clause exceeds %d expression nodes", config.MaxExprNodes)
	}
	p.nodes = append(p.nodes, n)
	return len(p.nodes) - 1, nil
}

// parseOr := parseAnd (OR parseAnd)*
func (p *parser) parseOr() (int, error) {
	left, err := p.parseAnd()
	if err != nil {
		return 0, err
	}
	for p.cur().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return 0, err
		}
		left, err = p.alloc(Node{Kind: KindOr, Left: left, Right: right})
		if err != nil {
			return 0, err
		}
	}
	return left, nil
}

// parseAnd := parsePrim (AND parsePrim)*
func (p *parser) parseAnd() (int, error) {
	left, err := p.parsePrim()
	if err != nil {
		return 0, err
	}
	for p.cur().kind == tokAnd {
		p.advance()
		right, err := p.parsePrim()
		if err != nil {
			return 0, err
		}
		left, err = p.alloc(Node{Kind: KindAnd, Left: left, Right: right})
		if err != nil {
			return 0, err
		}
	}
	return left, nil
}

// parsePrim := '(' parseOr ')' | parseBasic
func (p *parser) parsePrim() (int, error) {
	if p.cur().kind == tokLParen {
		p.advance()
		idx, err := p.parseOr()
		if err != nil {
			return 0, err
		}
		if p.cur().kind != tokRParen {
			return 0, dberr.New(dberr.PrepareSyntaxError, "expected ')' in WHERE clause")
		}
		p.advance()
		return idx, nil
	}
	return p.parseBasic()
}

// parseBasic := IDENT OP (NUMBER | STRING)
func (p *parser) parseBasic() (int, error) {
	ident := p.cur()
	if ident.kind != tokIdent {
		return 0, dberr.New(dberr.PrepareSyntaxError, "expected column name in WHERE clause")
	}
	p.advance()

	opTok := p.cur()
	if opTok.kind != tokOp {
		return 0, dberr.New(dberr.PrepareSyntaxError, "expected comparison operator after %q", ident.text)
	}
	p.advance()
	op, err := opFromText(opTok.text)
	if err != nil {
		return 0, err
	}

	valTok := p.cur()
	var val literal
	switch valTok.kind {
	case tokNumber:
		val = literal{num: valTok.num}
	case tokString:
		val = literal{isString: true, str: valTok.text}
	default:
		return 0, dberr.New(dberr.PrepareSyntaxError, "expected a value after operator in WHERE clause")
	}
	p.advance()

	return p.alloc(Node{Kind: KindCmp, Left: -1, Right: -1, Column: ident.text, Op: op, Val: val})
}

// Eval evaluates the expression against row in post-order.
func (e *Expr) Eval(row node.Row) (bool, error) {
	return e.evalNode(e.root, row)
}

func (e *Expr) evalNode(idx int, row node.Row) (bool, error) {
	n := e.nodes[idx]
	switch n.Kind {
	case KindOr:
		l, err := e.evalNode(n.Left, row)
		if err != nil {
			return false, err
		}
		r, err := e.evalNode(n.Right, row)
		if err != nil {
			return false, err
		}
		return l || r, nil
	case KindAnd:
		l, err := e.evalNode(n.Left, row)
		if err != nil {
			return false, err
		}
		r, err := e.evalNode(n.Right, row)
		if err != nil {
			return false, err
		}
		return l && r, nil
	default:
		return n.evalCmp(row)
	}
}

func (n Node) evalCmp(row node.Row) (bool, error) {
	switch n.Column {
	case "id":
		lhs := int64(row.ID)
		rhs := n.Val.num
		if n.Val.isString {
			parsed, err := strconv.ParseInt(n.Val.str, 10, 64)
			if err != nil {
				return false, dberr.New(dberr.PrepareSyntaxError, "id compared against non-numeric literal %q", n.Val.str)
			}
			rhs = parsed
		}
		return compareInt(lhs, n.Op, rhs), nil
	case "username":
		return compareString(row.Username, n.Op, n.Val.str), nil
	case "email":
		return compareString(row.Email, n.Op, n.Val.str), nil
	default:
		return false, dberr.New(dberr.PrepareSyntaxError, "unknown column %q in WHERE clause", n.Column)
	}
}

func compareInt(l int64, op CmpOp, r int64) bool {
	switch op {
	case Eq:
		return l == r
	case Ne:
		return l != r
	case Lt:
		return l < r
	case Le:
		return l <= r
	case Gt:
		return l > r
	case Ge:
		return l >= r
	}
	return false
}

func compareString(l string, op CmpOp, r string) bool {
	switch op {
	case Eq:
		return l == r
	case Ne:
		return l != r
	case Lt:
		return l < r
	case Le:
		return l <= r
	case Gt:
		return l > r
	case Ge:
		return l >= r
	}
	return false
}

// IndexableEquality reports whether the expression is a single "id = N"
// predicate, the shape the planner can satisfy with an IndexLookup
// instead of a scan.
func (e *Expr) IndexableEquality() (key uint32, ok bool) {
	if len(e.nodes) != 1 {
		return 0, false
	}
	n := e.nodes[0]
	if n.Kind != KindCmp || n.Column != "id" || n.Op != Eq {
		return 0, false
	}
	if n.Val.isString {
		return 0, false
	}
	if n.Val.num < 0 {
		return 0, false
	}
	return uint32(n.Val.num), true
}

// IndexableRange reports whether the expression is a single range
// predicate on id (<, <=, >, >=), the shape the planner can satisfy
// with a RangeScan seeked to the relevant boundary.
func (e *Expr) IndexableRange() (op CmpOp, key uint32, ok bool) {
	if len(e.nodes) != 1 {
		return 0, 0, false
	}
	n := e.nodes[0]
	if n.Kind != KindCmp || n.Column != "id" || n.Op == Eq || n.Op == Ne {
		return 0, 0, false
	}
	if n.Val.isString || n.Val.num < 0 {
		return 0, 0, false
	}
	return n.Op, uint32(n.Val.num), true
}

// SingleComparison reports the sole comparison node when the clause is
// exactly one basic predicate with no AND/OR combinator, for the
// planner's column-cardinality-based selectivity estimate.
func (e *Expr) SingleComparison() (Node, bool) {
	if len(e.nodes) != 1 || e.nodes[0].Kind != KindCmp {
		return Node{}, false
	}
	return e.nodes[0], true
}

// IsCompound reports whether the clause combines more than one basic
// predicate via AND/OR, the shape the planner treats as a flat 0.1
// selectivity guess rather than a per-column cardinality estimate.
func (e *Expr) IsCompound() bool {
	return len(e.nodes) > 1
}
