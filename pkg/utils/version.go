// Package utils holds small shared helpers that have no home of their own.
package utils

// Build identification, stamped via -ldflags at release time. The zero
// values identify a local development build.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
