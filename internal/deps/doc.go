// Package deps reports on the external programs and directories msconvert
// needs before it can sort a session.
package deps
