package main

import "fmt"

// usageError marks a command-line argument mistake (missing/invalid
// flag) as a spec §6 exit-code-1 user error, the same bucket
// declaration.ParseError and validate.Error fall into.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
