package resilience

import "fmt"

// ExternalCallError is returned once an external call has exhausted its
// attempts or failed with a non-retryable reason.
type ExternalCallError struct {
	Op       string
	Reason   Reason
	Attempts int
	Err      error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s) [%s]: %v", e.Op, e.Attempts, e.Reason, e.Err)
}

func (e *ExternalCallError) Unwrap() error {
	return e.Err
}
