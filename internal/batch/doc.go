// Package batch converts every session found in a directory.
//
// Each session is guarded by an advisory lock file next to its recordings so
// that two msconvert processes never work on the same session. Distinct
// sessions run concurrently up to batch.parallel_sessions. Every run that
// starts work is recorded in the run ledger.
package batch
