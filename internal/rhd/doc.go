// Package rhd decodes Intan RHD acquisition files.
//
// ParseHeader walks the versioned header with a single cursor driven by a
// declarative field table, so the byte offset where parsing stops is the
// header length used to locate the data blocks. ReadFile maps a file
// read-only and copies the requested channel groups out of the interleaved
// blocks; ReadSession concatenates several contiguous files. FindSessions
// groups a basename's files into recording sessions, and the probe and cue
// helpers resolve tetrode channel maps and behavioural event pins.
package rhd
