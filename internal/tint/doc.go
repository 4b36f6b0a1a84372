// Package tint writes the files the Tint analysis suite loads: the session
// `.set`, `.pos` position data, `.eeg`/`.egf` local field potentials,
// per-tetrode spike files, and reads the binary ones back for validation.
//
// Every binary file shares one layout: "\r\n"-separated text header lines
// ending in `data_start`, the packed body, then "\r\ndata_end\r\n". The body
// length is fully determined by the header, which is what Check verifies.
package tint
