// Package axona reads Axona DacqUSB recordings: the raw .bin packet stream
// and the .set parameter file that accompanies it.
package axona
