// Package engine serialises every allocation mutation through one goroutine.
//
// ARCHITECTURE:
//
// Single-Writer Operation Loop:
// Callers submit Operations; Engine.Run executes them one at a time in
// FIFO order. Each operation runs to completion (its store transaction,
// collaborator calls and journal append) before the next one starts, so
// two commits against the same project can never interleave.
//
// Operation Flow:
//  1. Submit/Enqueue pushes a job onto the FIFO queue
//  2. Run dequeues the job and stamps it with the next logical seq
//  3. The operation runs against the allocation service
//  4. The outcome is appended to the journal
//  5. Submit callers receive the reply; Enqueue callers do not wait
//
// Reads (projections) do not go through the loop; they read the store
// directly.
//
// Determinism:
// Journal entries carry a logical seq from Clock, never wall-clock order.
// Staking query ids are derived from the request id and a per-request
// counter, so replaying the journal against an empty store regenerates
// the same ids, entry ids and results.
package engine
