package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/amishk599/personiojobs/internal/model"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitInvalid = 2
)

// usageError marks invalid arguments and flags.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ue *usageError
	var ipe *model.InvalidParametersError
	if errors.As(err, &ue) || errors.As(err, &ipe) {
		return exitInvalid
	}
	return exitFailure
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
