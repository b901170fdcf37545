package main

import (
	"fmt"
	"os"
)

// FatalError writes an error message to stderr and exits with code 1.
// Used for anything that prevents the migration from completing: a missing
// database file, a failed statement, an unreadable config.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// FatalErrorWithHint writes an error message with an actionable hint to
// stderr and exits.
//
// Example:
//
//	FatalErrorWithHint("database file 'workbot.db' not found",
//	    "run wbm from your WorkBot project directory or pass --db")
func FatalErrorWithHint(message, hint string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	os.Exit(1)
}

// WarnError writes a warning to stderr and returns. Used for optional work
// that should not stop the run, such as a failed telemetry flush.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
