package calclib

import (
	"fmt"
	"strings"
)

// BinaryOp is the closed set of binary operators (§4.2's precedence table).
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpPow
	OpConcat
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// precedence returns the binding power used for parsing and for
// deciding when to parenthesize an operand on render (§4.2, §4.3).
func (op BinaryOp) precedence() int {
	switch op {
	case OpPow:
		return 10
	case OpMul, OpDiv:
		return 8
	case OpAdd, OpSub:
		return 7
	case OpConcat:
		return 6
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return 5
	}
	return 0
}

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpPow:
		return "^"
	case OpConcat:
		return "&"
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	}
	return "?"
}

// UnaryOp is the closed set of unary operators: prefix +/- and the
// trailing-% lexical suffix (§4.2).
type UnaryOp int

const (
	UnaryPlus UnaryOp = iota
	UnaryMinus
	UnaryPercent
)

// ASTNode is the common operation set every formula AST variant
// supports (§4.3): evaluation, dependency extraction, address fixup on
// structural edits, and dual display/raw rendering.
type ASTNode interface {
	// Evaluate computes this node's Variant within ctx.
	Evaluate(ctx *CalculationContext) Variant

	// Dependents appends every fully-qualified CellLocation this node
	// reads, given the formula's source cell (for resolving unqualified
	// sheet names and relative addresses).
	Dependents(source CellLocation, out []CellLocation) []CellLocation

	// FixupAddress adjusts any absolute/relative coordinates on editSheet
	// affected by inserting or deleting at the given column/row with the
	// given offset (+1 insert, -1 delete; 0 means "no change on that
	// axis"). Returns true if anything in the subtree changed.
	FixupAddress(source CellLocation, editSheet string, column, row, offset int) bool

	// ToString renders the display (absolute-address) form.
	ToString() string

	// ToRawString renders the persistence/copy-paste form: relative
	// addresses, given the formula's source cell.
	ToRawString(source CellLocation) string
}

// NumberNode is a numeric (or boolean) literal.
type NumberNode struct {
	Value Variant
}

func (n *NumberNode) Evaluate(*CalculationContext) Variant { return n.Value }
func (n *NumberNode) Dependents(CellLocation, []CellLocation) []CellLocation { return nil }
func (n *NumberNode) FixupAddress(CellLocation, string, int, int, int) bool { return false }
func (n *NumberNode) ToString() string                                     { return n.Value.String() }
func (n *NumberNode) ToRawString(CellLocation) string                      { return n.Value.String() }

// TextNode is a string literal.
type TextNode struct {
	Value string
}

func (n *TextNode) Evaluate(*CalculationContext) Variant { return TextVariant(n.Value) }
func (n *TextNode) Dependents(CellLocation, []CellLocation) []CellLocation { return nil }
func (n *TextNode) FixupAddress(CellLocation, string, int, int, int) bool { return false }
func (n *TextNode) ToString() string                                     { return quoteText(n.Value) }
func (n *TextNode) ToRawString(CellLocation) string                      { return quoteText(n.Value) }

func quoteText(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
}

// LocationNode is a single-cell reference, recorded in both absolute
// and relative form (§4.2) so it can render either way. ErrorFlag is
// set by FixupAddress when a structural edit pushed the reference
// below row/column 1; evaluation of a node with ErrorFlag set raises
// invalid-reference (§4.5).
type LocationNode struct {
	Absolute  CellLocation
	Relative  RelativeAddress
	ErrorFlag bool
}

func (n *LocationNode) Evaluate(ctx *CalculationContext) Variant {
	if n.ErrorFlag {
		return ErrorVariant(ErrInvalidReference)
	}
	return ctx.evaluateLocation(n.Absolute.Qualify(ctx.sourceCell().Sheet))
}

func (n *LocationNode) Dependents(source CellLocation, out []CellLocation) []CellLocation {
	if n.ErrorFlag {
		return out
	}
	return append(out, n.Absolute.Qualify(source.Sheet))
}

func (n *LocationNode) FixupAddress(source CellLocation, editSheet string, column, row, offset int) bool {
	changed := fixupLocation(&n.Absolute, &n.ErrorFlag, source, editSheet, column, row, offset)
	if !n.ErrorFlag {
		// the source cell may itself have moved, so re-derive the offsets
		n.Relative = RelativeFrom(n.Absolute, source)
	}
	return changed
}

func (n *LocationNode) ToString() string {
	if n.ErrorFlag {
		return "#REF!"
	}
	return n.Absolute.String()
}

func (n *LocationNode) ToRawString(source CellLocation) string {
	if n.ErrorFlag {
		return "#REF!"
	}
	return n.Relative.String()
}

// fixupLocation applies §4.3's FixupAddress contract to a single
// absolute location. It does not touch the relative form; the caller
// re-derives that from the adjusted location and the source cell's
// current position. A location is only ever adjusted when it
// resolves to editSheet, the sheet the structural edit actually
// happened on — not necessarily the formula's own sheet, so cross-sheet
// references get fixed up too. Returns true if the location changed.
func fixupLocation(loc *CellLocation, errorFlag *bool, source CellLocation, editSheet string, column, row, offset int) bool {
	if *errorFlag {
		return false
	}
	sheet := loc.Sheet
	if sheet == "" {
		sheet = source.Sheet
	}
	if sheet != editSheet {
		return false
	}
	changed := false
	switch {
	case column != 0 && offset < 0 && loc.Column == column:
		// the referenced column is the one being deleted outright
		*errorFlag = true
		changed = true
	case column != 0 && loc.Column >= column:
		loc.Column += offset
		changed = true
	}
	switch {
	case row != 0 && offset < 0 && loc.Row == row:
		// the referenced row is the one being deleted outright
		*errorFlag = true
		changed = true
	case row != 0 && loc.Row >= row:
		loc.Row += offset
		changed = true
	}
	if changed && !*errorFlag && (loc.Column < 1 || loc.Row < 1) {
		*errorFlag = true
	}
	return changed
}

// RangeNode is a rectangular A1:B5-style reference. The parser builds
// one wherever a cell reference is followed by ":" and a second cell
// reference, in any operand position; it is not limited to function
// arguments. Outside a range-expanding function, Evaluate reads the
// top-left cell.
type RangeNode struct {
	Start *LocationNode
	End   *LocationNode
}

// cells expands the range to every location in its rectangle, clamped
// to [min,max] per axis as §4.3 specifies.
func (n *RangeNode) cells(source CellLocation) []CellLocation {
	if n.Start.ErrorFlag || n.End.ErrorFlag {
		return nil
	}
	start := n.Start.Absolute.Qualify(source.Sheet)
	end := n.End.Absolute.Qualify(source.Sheet)
	c1, c2 := start.Column, end.Column
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	r1, r2 := start.Row, end.Row
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	var out []CellLocation
	for c := c1; c <= c2; c++ {
		for r := r1; r <= r2; r++ {
			out = append(out, CellLocation{Sheet: start.Sheet, Column: c, Row: r})
		}
	}
	return out
}

// Evaluate on a bare range (not inside an aggregate function) returns
// the top-left cell's value, mirroring how most spreadsheet engines
// degrade a range used in scalar position.
func (n *RangeNode) Evaluate(ctx *CalculationContext) Variant {
	cells := n.cells(ctx.sourceCell())
	if len(cells) == 0 {
		return ErrorVariant(ErrInvalidReference)
	}
	return ctx.evaluateLocation(cells[0])
}

func (n *RangeNode) Dependents(source CellLocation, out []CellLocation) []CellLocation {
	return append(out, n.cells(source)...)
}

func (n *RangeNode) FixupAddress(source CellLocation, editSheet string, column, row, offset int) bool {
	a := n.Start.FixupAddress(source, editSheet, column, row, offset)
	b := n.End.FixupAddress(source, editSheet, column, row, offset)
	return a || b
}

func (n *RangeNode) ToString() string {
	return n.Start.ToString() + ":" + n.End.ToString()
}

func (n *RangeNode) ToRawString(source CellLocation) string {
	return n.Start.ToRawString(source) + ":" + n.End.ToRawString(source)
}

// BinaryOpNode applies a binary operator to two subtrees.
type BinaryOpNode struct {
	Op    BinaryOp
	Left  ASTNode
	Right ASTNode
}

func (n *BinaryOpNode) Evaluate(ctx *CalculationContext) Variant {
	left := n.Left.Evaluate(ctx)
	if left.IsError() {
		return left
	}
	right := n.Right.Evaluate(ctx)
	if right.IsError() {
		return right
	}
	switch n.Op {
	case OpAdd:
		return left.Add(right)
	case OpSub:
		return left.Sub(right)
	case OpMul:
		return left.Mul(right)
	case OpDiv:
		return left.Div(right)
	case OpPow:
		return left.Pow(right)
	case OpConcat:
		return left.Concat(right)
	case OpEq:
		return BoolVariant(Compare(left, right, ctx.epsilon()) == CompareEqual)
	case OpNe:
		return BoolVariant(Compare(left, right, ctx.epsilon()) != CompareEqual)
	case OpLt:
		return BoolVariant(Compare(left, right, ctx.epsilon()) == CompareLess)
	case OpLe:
		return BoolVariant(Compare(left, right, ctx.epsilon()) != CompareGreater)
	case OpGt:
		return BoolVariant(Compare(left, right, ctx.epsilon()) == CompareGreater)
	case OpGe:
		return BoolVariant(Compare(left, right, ctx.epsilon()) != CompareLess)
	}
	return ErrorVariant(ErrInvalidFormula)
}

func (n *BinaryOpNode) Dependents(source CellLocation, out []CellLocation) []CellLocation {
	out = n.Left.Dependents(source, out)
	out = n.Right.Dependents(source, out)
	return out
}

func (n *BinaryOpNode) FixupAddress(source CellLocation, editSheet string, column, row, offset int) bool {
	a := n.Left.FixupAddress(source, editSheet, column, row, offset)
	b := n.Right.FixupAddress(source, editSheet, column, row, offset)
	return a || b
}

func (n *BinaryOpNode) ToString() string {
	return renderOperand(n.Left, n.Op, false) + n.Op.String() + renderOperand(n.Right, n.Op, true)
}

func (n *BinaryOpNode) ToRawString(source CellLocation) string {
	return renderOperandRaw(n.Left, n.Op, false, source) + n.Op.String() + renderOperandRaw(n.Right, n.Op, true, source)
}

// renderOperand wraps an operand in parentheses when its own operator
// binds strictly looser than the parent's (§4.3), and also wraps a
// right operand of equal precedence, since operators associate left.
func renderOperand(node ASTNode, parent BinaryOp, isRight bool) string {
	if child, ok := node.(*BinaryOpNode); ok {
		if child.Op.precedence() < parent.precedence() || (isRight && child.Op.precedence() == parent.precedence()) {
			return "(" + child.ToString() + ")"
		}
	}
	return node.ToString()
}

func renderOperandRaw(node ASTNode, parent BinaryOp, isRight bool, source CellLocation) string {
	if child, ok := node.(*BinaryOpNode); ok {
		if child.Op.precedence() < parent.precedence() || (isRight && child.Op.precedence() == parent.precedence()) {
			return "(" + child.ToRawString(source) + ")"
		}
	}
	return node.ToRawString(source)
}

// UnaryOpNode applies a prefix +/- or the trailing-% suffix.
type UnaryOpNode struct {
	Op      UnaryOp
	Operand ASTNode
}

func (n *UnaryOpNode) Evaluate(ctx *CalculationContext) Variant {
	v := n.Operand.Evaluate(ctx)
	if v.IsError() {
		return v
	}
	switch n.Op {
	case UnaryPlus:
		return v
	case UnaryMinus:
		return v.Neg()
	case UnaryPercent:
		return v.Percent()
	}
	return ErrorVariant(ErrInvalidFormula)
}

func (n *UnaryOpNode) Dependents(source CellLocation, out []CellLocation) []CellLocation {
	return n.Operand.Dependents(source, out)
}

func (n *UnaryOpNode) FixupAddress(source CellLocation, editSheet string, column, row, offset int) bool {
	return n.Operand.FixupAddress(source, editSheet, column, row, offset)
}

func (n *UnaryOpNode) ToString() string {
	operand := n.Operand.ToString()
	if _, ok := n.Operand.(*BinaryOpNode); ok {
		operand = "(" + operand + ")"
	}
	switch n.Op {
	case UnaryPercent:
		return operand + "%"
	case UnaryMinus:
		return "-" + operand
	default:
		return "+" + operand
	}
}

func (n *UnaryOpNode) ToRawString(source CellLocation) string {
	operand := n.Operand.ToRawString(source)
	if _, ok := n.Operand.(*BinaryOpNode); ok {
		operand = "(" + operand + ")"
	}
	switch n.Op {
	case UnaryPercent:
		return operand + "%"
	case UnaryMinus:
		return "-" + operand
	default:
		return "+" + operand
	}
}

// FunctionNode is a call to a registered function, e.g. SUM(A1:A2).
type FunctionNode struct {
	Method string
	Args   []ASTNode
}

func (n *FunctionNode) Evaluate(ctx *CalculationContext) Variant {
	descriptor, ok := ctx.functions.Lookup(n.Method)
	if !ok {
		return ErrorVariant(ErrInvalidFormula)
	}
	if !descriptor.acceptsArity(len(n.Args)) {
		return ErrorVariant(ErrArgumentCount)
	}
	args := make([]Variant, 0, len(n.Args))
	for _, arg := range n.Args {
		if descriptor.ExpandsRanges {
			if rng, ok := arg.(*RangeNode); ok {
				for _, loc := range rng.cells(ctx.sourceCell()) {
					args = append(args, ctx.evaluateLocation(loc))
				}
				continue
			}
			if named, ok := arg.(*NamedRangeNode); ok {
				if rng, ok := named.resolve(ctx.sourceCell()); ok {
					for _, loc := range rng.cells(ctx.sourceCell()) {
						args = append(args, ctx.evaluateLocation(loc))
					}
					continue
				}
			}
		}
		args = append(args, arg.Evaluate(ctx))
	}
	return descriptor.Call(ctx, args)
}

func (n *FunctionNode) Dependents(source CellLocation, out []CellLocation) []CellLocation {
	for _, arg := range n.Args {
		out = arg.Dependents(source, out)
	}
	return out
}

func (n *FunctionNode) FixupAddress(source CellLocation, editSheet string, column, row, offset int) bool {
	changed := false
	for _, arg := range n.Args {
		if arg.FixupAddress(source, editSheet, column, row, offset) {
			changed = true
		}
	}
	return changed
}

func (n *FunctionNode) ToString() string {
	parts := make([]string, len(n.Args))
	for i, arg := range n.Args {
		parts[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Method, strings.Join(parts, ","))
}

func (n *FunctionNode) ToRawString(source CellLocation) string {
	parts := make([]string, len(n.Args))
	for i, arg := range n.Args {
		parts[i] = arg.ToRawString(source)
	}
	return fmt.Sprintf("%s(%s)", n.Method, strings.Join(parts, ","))
}

// NamedRangeNode is a bare identifier resolved through the workbook's
// named-range table rather than a function call (supplemented feature,
// see SPEC_FULL.md). Ranges is bound at parse time to the owning
// workbook's table so Dependents can expand to every cell the name
// currently resolves to without threading a context through the
// Dependents call.
type NamedRangeNode struct {
	Name   string
	Ranges *NamedRangeTable
}

func (n *NamedRangeNode) resolve(source CellLocation) (*RangeNode, bool) {
	if n.Ranges == nil {
		return nil, false
	}
	return n.Ranges.Lookup(n.Name)
}

func (n *NamedRangeNode) Evaluate(ctx *CalculationContext) Variant {
	rng, ok := n.resolve(ctx.sourceCell())
	if !ok {
		return ErrorVariant(ErrInvalidReference)
	}
	cells := rng.cells(ctx.sourceCell())
	if len(cells) == 0 {
		return ErrorVariant(ErrInvalidReference)
	}
	return ctx.evaluateLocation(cells[0])
}

func (n *NamedRangeNode) Dependents(source CellLocation, out []CellLocation) []CellLocation {
	rng, ok := n.resolve(source)
	if !ok {
		return out
	}
	return append(out, rng.cells(source)...)
}

func (n *NamedRangeNode) FixupAddress(CellLocation, string, int, int, int) bool { return false }
func (n *NamedRangeNode) ToString() string                              { return n.Name }
func (n *NamedRangeNode) ToRawString(CellLocation) string               { return n.Name }
