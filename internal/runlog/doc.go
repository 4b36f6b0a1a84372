// Package runlog keeps a SQLite history of batch conversion runs.
//
// The ledger is an audit trail only. Whether a session still needs work is
// always decided from the files on disk, never from this database.
package runlog
