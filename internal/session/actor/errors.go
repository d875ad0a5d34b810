package actor

import (
	"errors"
	"fmt"
)

var (
	// ErrPolicyViolation is returned when tier policy refuses a decision. It
	// is always synchronous: the refused command leaves state untouched.
	ErrPolicyViolation = errors.New("policy violation")
	// ErrDecisionDeliveryFailed wraps a transport failure that happened after
	// the optimistic local removal. The removal is never rolled back.
	ErrDecisionDeliveryFailed = errors.New("decision delivery failed")
)

// PolicyViolationError refuses an approve-all batch that contains actions the
// watch may not approve. The whole batch is rejected; no partial approval.
type PolicyViolationError struct {
	// Ineligible is the number of pending actions that blocked the batch.
	Ineligible int
}

// Error implements error.
func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation: %d ineligible action(s) must be approved from host", e.Ineligible)
}

// Is matches the ErrPolicyViolation sentinel so callers can use errors.Is
// without caring whether the violation carries a count.
func (e *PolicyViolationError) Is(target error) bool {
	return target == ErrPolicyViolation
}
