package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // Audit passed
	ExitAuditFailed = 1 // The council did not pass the document
	ExitError       = 2 // Configuration or runtime error
)

// AuditFailureError indicates that the audit ran, but the council's decision
// was FAIL.
type AuditFailureError struct {
	Message string
}

func (e *AuditFailureError) Error() string {
	return e.Message
}

func main() {
	os.Exit(exitCode(execute()))
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(os.Stderr, err)

	var auditErr *AuditFailureError
	if errors.As(err, &auditErr) {
		return ExitAuditFailed
	}
	return ExitError
}
