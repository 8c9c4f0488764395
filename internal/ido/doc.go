// Package ido holds the allocation domain model and the pure rules that
// act on it.
//
// Nothing in this package touches storage, transport or wall time. Every
// rule takes the current state plus the caller's inputs and returns either
// a result or a typed *Error. Callers run all checks first and mutate only
// after every rule has passed.
//
// Sum types:
//
// Gate, SaleModel and SaleData are closed sets of variants. Switches over
// them list every variant and fall through to an INVALID_ARGUMENT error in
// the default branch, so a new variant shows up as a failing test instead
// of a silent no-op.
//
// Amounts:
//
// Amount is an unbounded integer in the token's smallest unit. No float
// ever enters a computation; Rate multiplies and divides in integers and
// only converts to a decimal for display.
package ido
