package monitoring

import "log"

// Logf is the package-level diagnostic logger for the bridge. It defaults to
// log.Printf but may be replaced with SetLogger so hosts embedding the bridge
// can route diagnostics into their own logging, and tests can mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
