// Package fileutil provides atomic writes and read-only memory maps for the
// files msconvert produces and consumes.
package fileutil
