package hash

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/nupython/compiler"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of a parsed program.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int64=8B, uint32=4B)
//   - Floats: IEEE 754 big-endian 8B
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Child nodes: serialized inline, left before right
//
// Source positions, comments and blank lines are not serialized.
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of a program.
func Serialize(prog *compiler.Program) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.writeByte(TagProgram)
	if prog == nil {
		s.writeUint32(0)
		return s.buf
	}
	s.writeUint32(uint32(len(prog.Stmts)))
	for _, stmt := range prog.Stmts {
		s.serializeStmt(stmt)
	}
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) serializeStmt(stmt compiler.Stmt) {
	switch n := stmt.(type) {
	case *compiler.Assignment:
		s.writeByte(TagAssignment)
		s.writeString(n.Name)
		s.serializeExpr(n.Value)

	case *compiler.DerefAssignment:
		s.writeByte(TagDerefAssignment)
		s.serializeExpr(n.Pointer)
		s.serializeExpr(n.Value)

	case *compiler.Print:
		if n.Arg == nil {
			s.writeByte(TagPrintBlank)
			return
		}
		s.writeByte(TagPrint)
		s.serializeExpr(n.Arg)

	case *compiler.Pass:
		s.writeByte(TagPass)

	default:
		panic(fmt.Sprintf("hash: unknown statement type %T", stmt))
	}
}

func (s *serializer) serializeExpr(expr compiler.Expr) {
	switch n := expr.(type) {
	case *compiler.IntLiteral:
		s.writeByte(TagIntLiteral)
		s.writeInt64(n.Value)

	case *compiler.FloatLiteral:
		s.writeByte(TagFloatLiteral)
		s.writeFloat64(n.Value)

	case *compiler.StringLiteral:
		s.writeByte(TagStringLiteral)
		s.writeString(n.Value)

	case *compiler.Identifier:
		s.writeByte(TagIdentifier)
		s.writeString(n.Name)

	case *compiler.BinaryExpr:
		s.writeByte(TagBinary)
		s.writeByte(byte(n.Op))
		s.serializeExpr(n.Left)
		s.serializeExpr(n.Right)

	case *compiler.UnaryExpr:
		s.writeByte(TagUnary)
		s.writeByte(byte(n.Op))
		s.serializeExpr(n.Operand)

	default:
		panic(fmt.Sprintf("hash: unknown expression type %T", expr))
	}
}
