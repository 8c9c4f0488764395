// Package harness runs allocation scenarios end to end against the engine.
//
// A scenario compiles its CUE project files, creates every project they
// declare, and then plays a script of engine operations at scripted
// instants. Staking answers come from an in-process resolver seeded with
// the scenario's stakes; settlement is an in-memory ledger.
//
// # Scenario Format
//
//	name: shared_pool_bounds
//	description: "Commits stay within the per-account bounds"
//	specs:
//	  - projects/shared.cue
//	stakes:
//	  alice: {locked_amount: "1000", locked_days: 360}
//	steps:
//	  - at: "2026-03-01T01:30:00Z"
//	    op: advance
//	    project: alpha
//	    args: {}
//	  - at: "2026-03-01T03:30:00Z"
//	    op: commit
//	    project: alpha
//	    args: {account: alice, amount: "15"}
//	    expect:
//	      outcome: ok
//	      result: {committed: "15"}
//	  - stake: {account: bob, locked_amount: "50"}
//	  - fail_transfers: {account: alice}
//	assertions:
//	  - type: journal_count
//	    kind: commit
//	    count: 1
//	  - type: account_state
//	    project: alpha
//	    account: alice
//	    expect: {sale: {committed: "15"}}
//
// Spec paths are relative to the scenario file. Projects are created in
// declaration order before the first step, so the first one has id 1.
// A step's project names one of them and fills args.project_id.
//
// # Assertion Types
//
//   - journal_contains: an entry of kind with the given project, account,
//     outcome and code exists
//   - journal_order: the first entries of each kind appear in order
//   - journal_count: exactly count entries of kind match
//   - project_state: subset match against the project projection
//   - account_state: subset match against the account projection
//   - transfer_total: the ledger paid account this total of asset
//
// # Determinism
//
// Request ids come from a sequence generator, the wall clock only moves
// when a step says so, and resolutions are queued behind the operation
// that dispatched them. The journal of a scenario is therefore identical
// on every run, which is what the golden files under testdata/golden pin.
package harness
