// Package session derives conversion state from the files on disk.
//
// Every intermediate and output file of a recording is named from the
// session's output basename plus a fixed suffix (Layout). Resolve inspects
// those files with validators that return tagged Check results, so a
// half-written artefact reads as invalid rather than present, and reports
// one of four states. Nothing is cached: every call re-reads the
// filesystem, which is what lets an interrupted run resume where it
// stopped. Source files that cannot be decoded surface as errors and are
// never folded into "needs work".
package session
