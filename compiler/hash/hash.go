// Package hash computes content hashes of parsed nuPython programs.
package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chazu/nupython/compiler"
)

// HashProgram computes the SHA-256 content hash of a program.
//
// The hash covers the statement sequence only. Two sources that differ in
// comments, blank lines, spacing or literal spelling (01230 and 1230)
// produce the same hash.
func HashProgram(prog *compiler.Program) [32]byte {
	return sha256.Sum256(Serialize(prog))
}

// Hex returns the hash of prog as a lowercase hex string.
func Hex(prog *compiler.Program) string {
	h := HashProgram(prog)
	return hex.EncodeToString(h[:])
}
