// Package cutfile reads and writes Tint `.cut` cluster-assignment files.
//
// The header carries one placeholder geometry block per cluster with all
// centre, min and max coordinates zero; Tint recomputes them on load. Labels
// follow the `Exact_cut_for` line as 3-character right-aligned integers, 25
// per line, with no newline after the last value.
package cutfile
