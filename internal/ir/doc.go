// Package ir defines the value types shared by every stage of the flag search.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - A Score is lower-is-better and non-positive scores are failures
//   - RunRecords are immutable once created
//   - Run IDs come from a single monotonic counter per search session
//   - Configuration identity is a SHA-256 over canonical JSON, never over a
//     formatted flag string with incidental whitespace
package ir
