package notify

import (
	"errors"
	"fmt"
	"strings"
)

// Failure is one undelivered message.
type Failure struct {
	Recipient string
	Err       error
}

// DeliveryError reports messages of one notification that could not be
// delivered. It never affects the order it describes.
type DeliveryError struct {
	Kind     string
	OrderID  string
	Total    int
	Failures []Failure
}

func (e *DeliveryError) Error() string {
	recipients := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		recipients = append(recipients, f.Recipient)
	}
	return fmt.Sprintf("%s for %s: %d of %d deliveries failed (%s)",
		e.Kind, e.OrderID, len(e.Failures), e.Total, strings.Join(recipients, ", "))
}

func (e *DeliveryError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// IsDeliveryError reports whether err is a *DeliveryError.
func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}
