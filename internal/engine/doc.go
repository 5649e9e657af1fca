// Package engine implements the combined-elimination search.
//
// The search starts from a configuration with every catalog flag enabled
// and greedily disables flags whose removal makes the build better, until a
// full round finds nothing left to remove.
//
// ARCHITECTURE:
//
// Single Control Goroutine:
// All search state (the base configuration, the flags still under
// consideration, the ledger) is owned by the goroutine running Engine.Run.
// It is only ever mutated between batches, so it needs no locking.
//
// Bounded Worker Pool:
// Candidate evaluations of one round run concurrently, at most jobs at a
// time. The control goroutine blocks until the whole batch has joined and
// only then looks at the results. A failing evaluation never cancels its
// siblings: external builds are always allowed to finish, so no orphaned
// processes are left behind.
//
// Search Rounds:
//  1. EVALUATE: one candidate per flag under consideration, equal to the
//     base configuration with exactly that flag disabled.
//  2. CONFIRM: candidates that beat the base score are re-evaluated in
//     ascending score order against the current base. A confirmed
//     candidate becomes the new base and its flag leaves consideration for
//     good. An unconfirmed one stays eligible.
//  3. Repeat while the round accepted something.
//
// Run IDs are assigned at submission time from a Clock, so the ledger
// order and the directory names are deterministic given identical scores.
package engine
