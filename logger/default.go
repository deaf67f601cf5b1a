package logger

import "os"

var defLogger = NewSlogWriter(os.Stderr, InfoLevel, false)

// SetLogger replaces the logger handed to links created without WithLogger.
// A nil logger is ignored.
func SetLogger(l Logger) {
	if l != nil {
		defLogger = l
	}
}

// GetLogger returns the default logger.
func GetLogger() Logger {
	return defLogger
}
