// Package sorter drives the external MountainSort pipeline through
// ml-run-process.
//
// The sorter is a black box that reports progress only through its terminal
// output. Client.Sort appends that output to a per-tetrode terminal log and
// polls it: one of two sentinel blocks means success, a non-zero exit notice
// means abort, and a log that never appears or stops advancing for the
// stall timeout triggers a retry with a fresh log. Commands run through the
// Executor interface so tests can substitute scripted output.
package sorter
