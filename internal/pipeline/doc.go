// Package pipeline converts one recording session end to end.
//
// Runner.Run resolves the session, then walks the stages in order: set
// conversion, source to MDA, sorting, position export, tetrode and cut
// export, and LFP export. Each stage first re-checks the artefacts it would
// produce and skips work that is already valid, so a run interrupted at any
// point converges on the next invocation. Tetrodes are isolated from each
// other: a failure is logged and joined into the returned error while the
// remaining tetrodes and stages continue. Intermediate files are removed only
// once the resolver reports the session fully converted with no failures.
package pipeline
