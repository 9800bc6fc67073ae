package compiler

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func parseOK(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return prog
}

func TestParseAssignment(t *testing.T) {
	prog := parseOK(t, "x = 3 * 4\n")
	if len(prog.Stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(prog.Stmts))
	}
	assign, ok := prog.Stmts[0].(*Assignment)
	if !ok {
		t.Fatalf("stmt is %T, want *Assignment", prog.Stmts[0])
	}
	if assign.Name != "x" {
		t.Errorf("name = %q, want x", assign.Name)
	}
	bin, ok := assign.Value.(*BinaryExpr)
	if !ok || bin.Op != OpMul {
		t.Fatalf("value = %#v, want 3 * 4", assign.Value)
	}
	if l, ok := bin.Left.(*IntLiteral); !ok || l.Value != 3 {
		t.Errorf("left = %#v", bin.Left)
	}
}

func TestParseDerefAssignment(t *testing.T) {
	prog := parseOK(t, "*ptr_x = x - z\n")
	deref, ok := prog.Stmts[0].(*DerefAssignment)
	if !ok {
		t.Fatalf("stmt is %T, want *DerefAssignment", prog.Stmts[0])
	}
	if id, ok := deref.Pointer.(*Identifier); !ok || id.Name != "ptr_x" {
		t.Errorf("pointer = %#v, want ptr_x", deref.Pointer)
	}
	if bin, ok := deref.Value.(*BinaryExpr); !ok || bin.Op != OpSub {
		t.Errorf("value = %#v, want x - z", deref.Value)
	}
}

func TestParseDerefLiteralAddress(t *testing.T) {
	prog := parseOK(t, "*(1 + 1) = 7\n*3 = 8\n")
	if len(prog.Stmts) != 2 {
		t.Fatalf("got %d statements", len(prog.Stmts))
	}
	if _, ok := prog.Stmts[0].(*DerefAssignment).Pointer.(*BinaryExpr); !ok {
		t.Errorf("first pointer should be a binary expression")
	}
	if lit, ok := prog.Stmts[1].(*DerefAssignment).Pointer.(*IntLiteral); !ok || lit.Value != 3 {
		t.Errorf("second pointer should be literal 3")
	}
}

func TestParsePrint(t *testing.T) {
	prog := parseOK(t, "print()\nprint(\"hi\")\nprint(01230)\n")
	if len(prog.Stmts) != 3 {
		t.Fatalf("got %d statements, want 3", len(prog.Stmts))
	}
	if p := prog.Stmts[0].(*Print); p.Arg != nil {
		t.Errorf("bare print has arg %#v", p.Arg)
	}
	if s, ok := prog.Stmts[1].(*Print).Arg.(*StringLiteral); !ok || s.Value != "hi" {
		t.Errorf("print arg = %#v", prog.Stmts[1].(*Print).Arg)
	}
	if n, ok := prog.Stmts[2].(*Print).Arg.(*IntLiteral); !ok || n.Value != 1230 {
		t.Errorf("01230 parsed as %#v, want 1230", prog.Stmts[2].(*Print).Arg)
	}
}

func TestParseRealLiteral(t *testing.T) {
	prog := parseOK(t, "r = 144.75\n")
	if f, ok := prog.Stmts[0].(*Assignment).Value.(*FloatLiteral); !ok || f.Value != 144.75 {
		t.Errorf("value = %#v", prog.Stmts[0].(*Assignment).Value)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"10 - 4 - 3", "((10 - 4) - 3)"},
		{"2 ** 3 ** 2", "(2 ** (3 ** 2))"},
		{"-2 ** 2", "-(2 ** 2)"},
		{"2 ** -1", "(2 ** -1)"},
		{"x % z / 2", "((x % z) / 2)"},
		{"- -x", "--x"},
	}
	for _, tt := range tests {
		p := NewParser(tt.src)
		expr := p.ParseExpression()
		if len(p.Errors()) > 0 {
			t.Errorf("%s: %v", tt.src, p.Errors()[0])
			continue
		}
		if got := render(expr); got != tt.want {
			t.Errorf("%s parsed as %s, want %s", tt.src, got, tt.want)
		}
	}
}

func render(e Expr) string {
	switch n := e.(type) {
	case *IntLiteral:
		return strconv.FormatInt(n.Value, 10)
	case *Identifier:
		return n.Name
	case *UnaryExpr:
		return n.Op.String() + render(n.Operand)
	case *BinaryExpr:
		return "(" + render(n.Left) + " " + n.Op.String() + " " + render(n.Right) + ")"
	}
	return "?"
}

func TestParsePassCommentsAndBlankLines(t *testing.T) {
	src := `#
# comment block
#

pass
x = 1    # trailing comment

print(x)`
	prog := parseOK(t, src)
	if len(prog.Stmts) != 3 {
		t.Fatalf("got %d statements, want 3", len(prog.Stmts))
	}
	if _, ok := prog.Stmts[0].(*Pass); !ok {
		t.Errorf("first stmt is %T, want *Pass", prog.Stmts[0])
	}
}

func TestParseStatementLines(t *testing.T) {
	prog := parseOK(t, "a = 1\n\n\n*p = 2\nprint(a)\n")
	want := []int{1, 4, 5}
	for i, line := range want {
		if got := prog.Stmts[i].Span().Start.Line; got != line {
			t.Errorf("stmt %d on line %d, want %d", i, got, line)
		}
	}
}

func TestParseErrorsRecover(t *testing.T) {
	src := "x = \ny = 2\nfoo(1)\nprint(1, 2)\nz = 3 4\nprint(y)\n"
	prog, err := Parse(src)
	if err == nil {
		t.Fatal("expected syntax errors")
	}
	list, ok := AsErrorList(err)
	if !ok {
		t.Fatalf("error is %T, want ErrorList", err)
	}
	if len(list) != 4 {
		t.Errorf("got %d errors, want 4: %v", len(list), list)
	}
	wantLines := []int{1, 3, 4, 5}
	for i, line := range wantLines {
		if i < len(list) && list[i].Pos.Line != line {
			t.Errorf("error %d on line %d, want %d (%v)", i, list[i].Pos.Line, line, list[i])
		}
	}
	if !strings.Contains(list[1].Msg, "unknown function 'foo'") {
		t.Errorf("error 1 = %q", list[1].Msg)
	}

	// The valid statements survive.
	if len(prog.Stmts) != 2 {
		t.Errorf("got %d statements, want 2", len(prog.Stmts))
	}
}

func TestParseErrorFormatting(t *testing.T) {
	_, err := Parse("x = )\n")
	var list ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("error is %T", err)
	}
	if got := err.Error(); !strings.HasPrefix(got, "line 1, column 5:") {
		t.Errorf("Error() = %q", got)
	}
}

func TestParseUnterminatedString(t *testing.T) {
	_, err := Parse("s = \"abc\n")
	if err == nil || !strings.Contains(err.Error(), "unterminated string literal") {
		t.Errorf("error = %v", err)
	}
}

func TestInspect(t *testing.T) {
	prog := parseOK(t, "x = 1\n*p = x + y\nprint()\nprint(-x)\npass\n")
	var idents []string
	var stmts int
	Inspect(prog, func(n Node) bool {
		switch n := n.(type) {
		case Stmt:
			stmts++
		case *Identifier:
			idents = append(idents, n.Name)
		}
		return true
	})
	if stmts != 5 {
		t.Errorf("visited %d statements, want 5", stmts)
	}
	if got := strings.Join(idents, ","); got != "p,x,y,x" {
		t.Errorf("identifiers = %s, want p,x,y,x", got)
	}

	var visited int
	Inspect(prog, func(n Node) bool {
		visited++
		return false
	})
	if visited != 5 {
		t.Errorf("pruned walk visited %d nodes, want 5", visited)
	}
}

func TestParseNulByteMidProgram(t *testing.T) {
	prog, err := Parse("print(1)\n\x00\nprint(2)\nprint(3)\n")
	list, ok := AsErrorList(err)
	if !ok || len(list) != 1 {
		t.Fatalf("err = %v, want one syntax error", err)
	}
	if list[0].Pos.Line != 2 {
		t.Errorf("error on line %d, want 2", list[0].Pos.Line)
	}
	if len(prog.Stmts) != 3 {
		t.Errorf("got %d statements, want 3", len(prog.Stmts))
	}
}
