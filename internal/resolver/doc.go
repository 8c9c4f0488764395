// Package resolver implements the dispatch/resolve protocol used whenever
// the allocation core has to consult the external staking service.
//
// Dispatch is stateless: a Query carries a Continuation describing what
// the core intends to do once the answer arrives, and the core keeps no
// record of outstanding queries. The answer comes back as a Resolution
// carrying the same Continuation, and the core re-validates every
// precondition before acting on it.
//
// A Resolution must carry exactly one Result. Any other count breaks the
// protocol contract and is reported as the fatal UNEXPECTED_RESULT_COUNT
// error; it is never treated as a user error.
package resolver
