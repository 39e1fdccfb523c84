// Package vm implements the runtime for compiled ink stories.
//
// This package contains:
//   - Story JSON decoding and the linked story graph
//   - Runtime values, lists and native operators
//   - The call stack, threads and variable scopes
//   - The step interpreter and output normalisation
//   - Session snapshots
package vm
