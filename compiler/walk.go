package compiler

// Inspect traverses the program in source order, calling fn for each
// statement and each expression node beneath it. Children of a node are
// skipped when fn returns false.
func Inspect(prog *Program, fn func(Node) bool) {
	if prog == nil {
		return
	}
	for _, stmt := range prog.Stmts {
		inspectNode(stmt, fn)
	}
}

func inspectNode(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *Assignment:
		inspectExpr(n.Value, fn)
	case *DerefAssignment:
		inspectExpr(n.Pointer, fn)
		inspectExpr(n.Value, fn)
	case *Print:
		inspectExpr(n.Arg, fn)
	case *BinaryExpr:
		inspectExpr(n.Left, fn)
		inspectExpr(n.Right, fn)
	case *UnaryExpr:
		inspectExpr(n.Operand, fn)
	}
}

// inspectExpr skips absent expressions, such as the argument of print().
func inspectExpr(e Expr, fn func(Node) bool) {
	if e == nil {
		return
	}
	inspectNode(e, fn)
}
