// Package monitoring carries the swappable diagnostic logger the analysis
// pipeline reports skipped fits and degraded cycles through.
package monitoring

import "log"

// Logf receives diagnostic messages from the pipeline. It defaults to
// log.Printf; SetLogger swaps it out, so batch runs can mute it and tests
// can capture it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil argument installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
