// Package vm implements the nuPython runtime core.
//
// This package contains:
//   - the tagged Value representation (int, real, string)
//   - the AddressTable of named, numbered slots
//   - the expression Evaluator and pointer resolution
//   - the VM, a single-pass executor that records semantic errors per
//     statement and keeps going
package vm
