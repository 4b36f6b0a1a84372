// Package services defines shared utilities consumed by the conversion
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp session basenames, tetrode numbers, stage
//     names, and run identifiers for logging.
//   - Structured error markers plus the Wrap helper. Codec markers (format,
//     truncation, inconsistent session, unsupported type) stay distinguishable
//     from "needs work" so corrupt inputs are never retried silently.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
