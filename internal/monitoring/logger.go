package monitoring

import "log"

// Logf is the package-level diagnostic logger used by the control loop and
// its collaborators. It defaults to log.Printf but may be replaced with
// SetLogger; tests mute it to keep output clean.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
