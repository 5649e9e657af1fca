// Package ledger accumulates the run records of one search and renders the
// final ratio report.
//
// A Ledger is append-only and single-writer: the search engine records
// every evaluation from its control goroutine after the evaluation's batch
// has joined. Readers get copies.
package ledger
