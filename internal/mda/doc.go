// Package mda reads and writes the MDA typed-array container used to exchange
// data with the spike sorter.
//
// An MDA file is three little-endian int32 header fields (type code, bytes per
// element, dimension count), one int32 per dimension, then the elements in
// column-major order. Array keeps its elements in that same order; FromRows
// and Rows perform the transposition for row-major callers.
package mda
