package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the program hashing format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// all previously computed program hashes.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing program hashes.
const HashVersion byte = 1

// AST node type tags.
const (
	TagReservedZero byte = 0x00

	// Literal values
	TagIntLiteral    byte = 0x01
	TagFloatLiteral  byte = 0x02
	TagStringLiteral byte = 0x03

	// Variable references
	TagIdentifier byte = 0x04

	// Operators
	TagBinary byte = 0x10
	TagUnary  byte = 0x11

	// Statements
	TagAssignment      byte = 0x20
	TagDerefAssignment byte = 0x21
	TagPrint           byte = 0x22
	TagPrintBlank      byte = 0x23
	TagPass            byte = 0x24

	// Structure
	TagProgram byte = 0x30
)
