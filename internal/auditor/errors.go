package auditor

import (
	"errors"
	"fmt"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
)

// ErrMismatch is returned when a reply is valid but names the wrong role or stage.
var ErrMismatch = errors.New("reply does not match the requested role and stage")

// ExecutionError is returned once a worker gives up on a role.
type ExecutionError struct {
	Role     models.AuditorRole
	Stage    models.DocumentStage
	Attempts int
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("auditor %s failed on %s after %d attempt(s): %v", e.Role, e.Stage, e.Attempts, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
