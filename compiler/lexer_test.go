package compiler

import (
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `( ) , + - * ** / % =`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenComma, ","},
		{TokenPlus, "+"},
		{TokenMinus, "-"},
		{TokenStar, "*"},
		{TokenPower, "**"},
		{TokenSlash, "/"},
		{TokenPercent, "%"},
		{TokenAssign, "="},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		want  string
	}{
		{"42", TokenInteger, "42"},
		{"0", TokenInteger, "0"},
		{"01230", TokenInteger, "01230"},
		{"144.75", TokenReal, "144.75"},
		{"3.", TokenReal, "3."},
		{".5", TokenReal, ".5"},
		{"1e10", TokenReal, "1e10"},
		{"2.5E-3", TokenReal, "2.5E-3"},
	}

	for _, tt := range tests {
		tok := NewLexer(tt.input).NextToken()
		if tok.Type != tt.typ {
			t.Errorf("%q: type = %v, want %v", tt.input, tok.Type, tt.typ)
		}
		if tok.Literal != tt.want {
			t.Errorf("%q: literal = %q, want %q", tt.input, tok.Literal, tt.want)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`'single'`, "single"},
		{`""`, ""},
		{`"it's"`, "it's"},
		{`"tab\there"`, "tab\there"},
		{`"quote\"d"`, `quote"d`},
		{`"Changing type, gotta love Python"`, "Changing type, gotta love Python"},
	}

	for _, tt := range tests {
		tok := NewLexer(tt.input).NextToken()
		if tok.Type != TokenString {
			t.Errorf("%s: type = %v, want STRING", tt.input, tok.Type)
			continue
		}
		if tok.Literal != tt.want {
			t.Errorf("%s: literal = %q, want %q", tt.input, tok.Literal, tt.want)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	tok := NewLexer("\"abc\nx = 1").NextToken()
	if tok.Type != TokenError {
		t.Fatalf("type = %v, want ERROR", tok.Type)
	}
}

func TestLexerIdentifiersAndKeywords(t *testing.T) {
	tokens := Tokenize("ptr_x _tmp pass print")
	want := []TokenType{TokenIdentifier, TokenIdentifier, TokenPass, TokenIdentifier, TokenEOF}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, typ := range want {
		if tokens[i].Type != typ {
			t.Errorf("token[%d] = %v, want %v", i, tokens[i].Type, typ)
		}
	}
}

func TestLexerCommentsAndNewlines(t *testing.T) {
	input := "# header\nx = 1   # trailing\n\nprint(x)\n"
	var types []TokenType
	for _, tok := range Tokenize(input) {
		types = append(types, tok.Type)
	}
	want := []TokenType{
		TokenNewline,
		TokenIdentifier, TokenAssign, TokenInteger, TokenNewline,
		TokenNewline,
		TokenIdentifier, TokenLParen, TokenIdentifier, TokenRParen, TokenNewline,
		TokenEOF,
	}
	if len(types) != len(want) {
		t.Fatalf("types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("token[%d] = %v, want %v", i, types[i], want[i])
		}
	}
}

func TestLexerNewlinesInsideParens(t *testing.T) {
	tokens := Tokenize("print(1 +\n 2)\n")
	for _, tok := range tokens[:len(tokens)-2] {
		if tok.Type == TokenNewline {
			t.Errorf("unexpected newline token inside parentheses: %v", tokens)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	tokens := Tokenize("x = 1\n  y = 22")
	// x
	if tokens[0].Pos.Line != 1 || tokens[0].Pos.Column != 1 {
		t.Errorf("x at %v, want 1:1", tokens[0].Pos)
	}
	// y follows "x", "=", "1", NEWLINE
	y := tokens[4]
	if y.Literal != "y" || y.Pos.Line != 2 || y.Pos.Column != 3 {
		t.Errorf("y token = %v at %v, want line 2 column 3", y, y.Pos)
	}
	// 22
	if n := tokens[6]; n.Pos.Column != 7 || n.Pos.Offset != 12 {
		t.Errorf("22 at %v offset %d, want column 7 offset 12", n.Pos, n.Pos.Offset)
	}
}

func TestLexerUnexpectedCharacter(t *testing.T) {
	tok := NewLexer("@").NextToken()
	if tok.Type != TokenError {
		t.Errorf("type = %v, want ERROR", tok.Type)
	}
}

func TestLexerNulByteIsNotEOF(t *testing.T) {
	tokens := Tokenize("a\x00b")
	want := []TokenType{TokenIdentifier, TokenError, TokenIdentifier, TokenEOF}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(tokens), tokens, len(want))
	}
	for i, typ := range want {
		if tokens[i].Type != typ {
			t.Errorf("token[%d] type = %v, want %v", i, tokens[i].Type, typ)
		}
	}
	if tokens[1].Literal != `unexpected character: '\x00'` {
		t.Errorf("literal = %q", tokens[1].Literal)
	}

	if tok := NewLexer("# note \x00 more\nx").NextToken(); tok.Type != TokenNewline {
		t.Errorf("comment containing NUL: first token = %v, want NEWLINE", tok)
	}
}
