// Package allocation runs the IDO operations against a store.
//
// Each mutating method reads, validates, mutates and writes inside one
// store transaction, so a rejected operation leaves no trace. The methods
// are not safe to interleave: callers serialize them through the engine's
// single-writer loop. Projections (the View methods) only read and may be
// called concurrently.
//
// Methods that need the staking service split into a dispatch half that
// hands a resolver.Query to the Dispatcher and returns at once, and a
// Resolve half that receives the answer later and re-validates every
// precondition before mutating anything.
package allocation
