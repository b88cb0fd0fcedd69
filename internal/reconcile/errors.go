package reconcile

import (
	"errors"
	"fmt"
)

// ErrContractViolation is matched by every error describing malformed engine input
var ErrContractViolation = errors.New("reconcile: contract violation")

// ContractViolationError describes the record or index entry that broke the
// engine's input contract
type ContractViolationError struct {
	Serial string
	Reason string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("reconcile: contract violation for serial %q: %s", e.Serial, e.Reason)
}

// Is implements errors.Is support
func (e *ContractViolationError) Is(target error) bool {
	return target == ErrContractViolation
}
