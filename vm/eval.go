package vm

import (
	"fmt"
	"math"

	"github.com/chazu/nupython/compiler"
)

// ---------------------------------------------------------------------------
// Evaluator: expressions and pointer resolution over an AddressTable
// ---------------------------------------------------------------------------

// Evaluator computes expression values with read access to a table.
// Evaluation stops at the first error, left operand first.
type Evaluator struct {
	table *AddressTable
}

// NewEvaluator creates an evaluator reading from table.
func NewEvaluator(table *AddressTable) *Evaluator {
	return &Evaluator{table: table}
}

// Eval evaluates expr.
func (e *Evaluator) Eval(expr compiler.Expr) (Value, error) {
	switch n := expr.(type) {
	case *compiler.IntLiteral:
		return FromInt(n.Value), nil
	case *compiler.FloatLiteral:
		return FromFloat64(n.Value), nil
	case *compiler.StringLiteral:
		return FromString(n.Value), nil
	case *compiler.Identifier:
		return e.table.ReadName(n.Name)
	case *compiler.UnaryExpr:
		operand, err := e.Eval(n.Operand)
		if err != nil {
			return Value{}, err
		}
		return UnaryOp(n.Op, operand)
	case *compiler.BinaryExpr:
		left, err := e.Eval(n.Left)
		if err != nil {
			return Value{}, err
		}
		right, err := e.Eval(n.Right)
		if err != nil {
			return Value{}, err
		}
		return BinaryOp(n.Op, left, right)
	case nil:
		return Value{}, invalidOperation("missing expression")
	}
	return Value{}, invalidOperation("unsupported expression %T", expr)
}

// ResolveAddress evaluates a pointer expression and returns the slot it
// designates. Undefined names propagate unchanged; anything that is not an
// integer in [0, Size()) is an invalid address.
func (e *Evaluator) ResolveAddress(ptr compiler.Expr) (int, error) {
	v, err := e.Eval(ptr)
	if err != nil {
		return 0, err
	}
	if !v.IsInt() {
		return 0, invalidAddress("invalid pointer value")
	}
	addr := v.Int64()
	if addr < 0 || addr >= int64(e.table.Size()) {
		return 0, invalidAddress("invalid memory address for assignment")
	}
	return int(addr), nil
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

// UnaryOp applies unary + or - to a numeric value, preserving its kind.
func UnaryOp(op compiler.Operator, v Value) (Value, error) {
	if !v.IsNumeric() || (op != compiler.OpSub && op != compiler.OpAdd) {
		return Value{}, invalidOperation("bad operand type for unary %s: '%s'", op, v.Kind())
	}
	if op == compiler.OpAdd {
		return v, nil
	}
	if v.IsInt() {
		return FromInt(-v.i), nil
	}
	return FromFloat64(-v.f), nil
}

// BinaryOp applies an arithmetic operator.
//
// Int op Int stays Int, except that / yields a real when the quotient is
// not exact. Any real operand promotes the other and yields a real.
// Strings support only concatenation with another string.
func BinaryOp(op compiler.Operator, left, right Value) (Value, error) {
	switch {
	case left.IsStr() && right.IsStr():
		if op == compiler.OpAdd {
			return FromString(left.s + right.s), nil
		}
	case left.IsInt() && right.IsInt():
		return intOp(op, left.i, right.i)
	case left.IsNumeric() && right.IsNumeric():
		return floatOp(op, left.toFloat(), right.toFloat())
	}
	return Value{}, invalidOperation("unsupported operand type(s) for %s: '%s' and '%s'",
		op, left.Kind(), right.Kind())
}

func intOp(op compiler.Operator, a, b int64) (Value, error) {
	switch op {
	case compiler.OpAdd:
		return FromInt(a + b), nil
	case compiler.OpSub:
		return FromInt(a - b), nil
	case compiler.OpMul:
		return FromInt(a * b), nil
	case compiler.OpDiv:
		if b == 0 {
			return Value{}, invalidOperation("divide by 0")
		}
		if a%b == 0 {
			return FromInt(a / b), nil
		}
		return FromFloat64(float64(a) / float64(b)), nil
	case compiler.OpMod:
		if b == 0 {
			return Value{}, invalidOperation("mod by 0")
		}
		return FromInt(a % b), nil
	case compiler.OpPow:
		if b < 0 {
			return FromFloat64(math.Pow(float64(a), float64(b))), nil
		}
		return FromInt(ipow(a, b)), nil
	}
	return Value{}, invalidOperation("unsupported operator %s", op)
}

func floatOp(op compiler.Operator, a, b float64) (Value, error) {
	switch op {
	case compiler.OpAdd:
		return FromFloat64(a + b), nil
	case compiler.OpSub:
		return FromFloat64(a - b), nil
	case compiler.OpMul:
		return FromFloat64(a * b), nil
	case compiler.OpDiv:
		if b == 0 {
			return Value{}, invalidOperation("divide by 0")
		}
		return FromFloat64(a / b), nil
	case compiler.OpMod:
		if b == 0 {
			return Value{}, invalidOperation("mod by 0")
		}
		return FromFloat64(math.Mod(a, b)), nil
	case compiler.OpPow:
		return FromFloat64(math.Pow(a, b)), nil
	}
	return Value{}, invalidOperation("unsupported operator %s", op)
}

// ipow computes base**exp for exp >= 0 by repeated squaring. Overflow wraps
// like the other integer operators.
func ipow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

// describeExpr renders a short form of expr for debug logging.
func describeExpr(expr compiler.Expr) string {
	switch n := expr.(type) {
	case *compiler.IntLiteral:
		return fmt.Sprintf("%d", n.Value)
	case *compiler.FloatLiteral:
		return fmt.Sprintf("%g", n.Value)
	case *compiler.StringLiteral:
		return fmt.Sprintf("%q", n.Value)
	case *compiler.Identifier:
		return n.Name
	case *compiler.UnaryExpr:
		return n.Op.String() + describeExpr(n.Operand)
	case *compiler.BinaryExpr:
		return "(" + describeExpr(n.Left) + " " + n.Op.String() + " " + describeExpr(n.Right) + ")"
	}
	return "?"
}
