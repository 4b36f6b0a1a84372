// Command msconvert converts electrophysiology recordings into Tint files by
// way of the MountainSort spike sorter.
//
// The CLI wraps the batch driver and adds read-only views over session
// state, recording headers, and run history. Configuration is loaded once
// per invocation from --config, ~/.config/msconvert/config.toml, or
// ./msconvert.toml, in that order.
package main
