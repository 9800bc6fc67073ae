package compiler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for nuPython
// ---------------------------------------------------------------------------

// ParseError is a syntax error at a source position.
type ParseError struct {
	Pos Position
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// ErrorList is the combined error returned by Parse.
type ErrorList []*ParseError

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d syntax errors:\n  %s", len(l), strings.Join(msgs, "\n  "))
}

// Parser parses nuPython source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	errors    []*ParseError
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole program. A non-nil error is an ErrorList.
func Parse(input string) (*Program, error) {
	p := NewParser(input)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return prog, ErrorList(errs)
	}
	return prog, nil
}

// AsErrorList extracts the syntax errors from an error returned by Parse.
func AsErrorList(err error) (ErrorList, bool) {
	var list ErrorList
	if errors.As(err, &list) {
		return list, true
	}
	return nil, false
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.describe(p.curToken))
	return false
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, &ParseError{
		Pos: p.curToken.Pos,
		Msg: fmt.Sprintf(format, args...),
	})
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []*ParseError {
	return p.errors
}

func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case TokenError:
		return tok.Literal
	case TokenEOF, TokenNewline:
		return tok.Type.String()
	}
	return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ParseProgram parses statements until EOF. A statement that fails to parse
// is dropped and parsing resumes at the next line.
func (p *Parser) ParseProgram() *Program {
	prog := &Program{}
	for {
		p.skipNewlines()
		if p.curTokenIs(TokenEOF) {
			return prog
		}
		before := len(p.errors)
		stmt := p.ParseStatement()
		if len(p.errors) == before {
			p.endStatement()
		}
		if len(p.errors) > before {
			p.synchronize()
			continue
		}
		if stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
	}
}

// ParseStatement parses a single statement starting at the current token.
func (p *Parser) ParseStatement() Stmt {
	switch p.curToken.Type {
	case TokenPass:
		start := p.curToken.Pos
		p.nextToken()
		return &Pass{SpanVal: Span{Start: start, End: start}}
	case TokenStar:
		return p.parseDerefAssignment()
	case TokenIdentifier:
		if p.peekTokenIs(TokenAssign) {
			return p.parseAssignment()
		}
		if p.peekTokenIs(TokenLParen) {
			return p.parseCall()
		}
	}
	p.errorf("unexpected %s at start of statement", p.describe(p.curToken))
	return nil
}

// parseAssignment parses name = expr.
func (p *Parser) parseAssignment() Stmt {
	start := p.curToken.Pos
	name := p.curToken.Literal
	p.nextToken() // name
	p.nextToken() // =
	value := p.ParseExpression()
	if value == nil {
		return nil
	}
	return &Assignment{
		SpanVal: Span{Start: start, End: value.Span().End},
		Name:    name,
		Value:   value,
	}
}

// parseDerefAssignment parses *pointer = expr.
func (p *Parser) parseDerefAssignment() Stmt {
	start := p.curToken.Pos
	p.nextToken() // *
	pointer := p.parsePrimary()
	if pointer == nil {
		return nil
	}
	if !p.expect(TokenAssign) {
		return nil
	}
	value := p.ParseExpression()
	if value == nil {
		return nil
	}
	return &DerefAssignment{
		SpanVal: Span{Start: start, End: value.Span().End},
		Pointer: pointer,
		Value:   value,
	}
}

// parseCall parses a function call statement. print is the only function.
func (p *Parser) parseCall() Stmt {
	start := p.curToken.Pos
	name := p.curToken.Literal
	if name != "print" {
		p.errorf("unknown function '%s'", name)
		return nil
	}
	p.nextToken() // name
	p.nextToken() // (

	var arg Expr
	if !p.curTokenIs(TokenRParen) {
		arg = p.ParseExpression()
		if arg == nil {
			return nil
		}
		if p.curTokenIs(TokenComma) {
			p.errorf("print() takes at most one argument")
			return nil
		}
	}
	end := p.curToken.Pos
	if !p.expect(TokenRParen) {
		return nil
	}
	return &Print{SpanVal: Span{Start: start, End: end}, Arg: arg}
}

// endStatement requires a statement to be followed by a newline or EOF.
func (p *Parser) endStatement() {
	if p.curTokenIs(TokenNewline) || p.curTokenIs(TokenEOF) {
		return
	}
	p.errorf("expected end of line, got %s", p.describe(p.curToken))
	p.synchronize()
}

// synchronize skips to the start of the next line.
func (p *Parser) synchronize() {
	for !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) {
		p.nextToken()
	}
}

func (p *Parser) skipNewlines() {
	for p.curTokenIs(TokenNewline) {
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// ParseExpression parses an arithmetic expression. Precedence follows
// Python: ** binds tighter than unary minus, which binds tighter than
// * / %, which bind tighter than + -.
func (p *Parser) ParseExpression() Expr {
	return p.parseAdditive()
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for left != nil && (p.curTokenIs(TokenPlus) || p.curTokenIs(TokenMinus)) {
		op := OpAdd
		if p.curTokenIs(TokenMinus) {
			op = OpSub
		}
		p.nextToken()
		right := p.parseMultiplicative()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: Span{Start: left.Span().Start, End: right.Span().End},
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for left != nil {
		var op Operator
		switch p.curToken.Type {
		case TokenStar:
			op = OpMul
		case TokenSlash:
			op = OpDiv
		case TokenPercent:
			op = OpMod
		default:
			return left
		}
		p.nextToken()
		right := p.parseUnary()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: Span{Start: left.Span().Start, End: right.Span().End},
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.curTokenIs(TokenMinus) || p.curTokenIs(TokenPlus) {
		start := p.curToken.Pos
		op := OpSub
		if p.curTokenIs(TokenPlus) {
			op = OpAdd
		}
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &UnaryExpr{
			SpanVal: Span{Start: start, End: operand.Span().End},
			Op:      op,
			Operand: operand,
		}
	}
	return p.parsePower()
}

// parsePower parses primary ** unary. The exponent may itself carry a
// sign, and ** is right-associative.
func (p *Parser) parsePower() Expr {
	base := p.parsePrimary()
	if base == nil || !p.curTokenIs(TokenPower) {
		return base
	}
	p.nextToken()
	exp := p.parseUnary()
	if exp == nil {
		return nil
	}
	return &BinaryExpr{
		SpanVal: Span{Start: base.Span().Start, End: exp.Span().End},
		Op:      OpPow,
		Left:    base,
		Right:   exp,
	}
}

// parsePrimary parses a literal, identifier, or parenthesized expression.
func (p *Parser) parsePrimary() Expr {
	tok := p.curToken
	span := Span{Start: tok.Pos, End: tok.Pos}

	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.errors = append(p.errors, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("integer literal out of range: %s", tok.Literal)})
			return nil
		}
		return &IntLiteral{SpanVal: span, Value: v}

	case TokenReal:
		p.nextToken()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errors = append(p.errors, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("invalid real literal: %s", tok.Literal)})
			return nil
		}
		return &FloatLiteral{SpanVal: span, Value: v}

	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: span, Value: tok.Literal}

	case TokenIdentifier:
		p.nextToken()
		return &Identifier{SpanVal: span, Name: tok.Literal}

	case TokenLParen:
		p.nextToken()
		inner := p.ParseExpression()
		if inner == nil {
			return nil
		}
		if !p.expect(TokenRParen) {
			return nil
		}
		return inner
	}

	p.errorf("expected expression, got %s", p.describe(tok))
	return nil
}
