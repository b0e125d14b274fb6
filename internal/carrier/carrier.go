// Package carrier abstracts the external SMS carrier. Exactly one concrete
// binding is active per deployment; nothing outside the providers packages
// depends on a vendor.
package carrier

import (
	"context"
	"errors"
)

// Submission is the carrier's synchronous answer to a send: the correlation
// id for later status callbacks and the carrier's initial status word.
type Submission struct {
	ExternalID string
	Status     string
}

type DeliveryStatus struct {
	ExternalID   string
	Status       string
	ErrorCode    string
	ErrorMessage string
	Cost         *float64
}

type Gateway interface {
	Send(ctx context.Context, to, body, callbackURL string) (Submission, error)
	FetchStatus(ctx context.Context, externalID string) (DeliveryStatus, error)
	// Sender is the identity messages go out under (from number or service id).
	Sender() string
}

// TransientError marks a carrier failure worth another attempt: timeouts,
// throttling, 5xx, an open circuit breaker. Anything not wrapped in it is
// treated as terminal by the dispatcher.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient carrier error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// NormalizeSubmitStatus collapses the carrier's initial submit vocabulary
// onto the internal one: a freshly accepted message is "sent" from the
// pipeline's point of view.
func NormalizeSubmitStatus(s string) string {
	switch s {
	case "queued", "sending", "accepted", "sent":
		return "sent"
	case "":
		return "failed"
	default:
		return s
	}
}

// MapDeliveryStatus maps an asynchronous carrier status event onto the
// internal delivery status.
func MapDeliveryStatus(s string) string {
	switch s {
	case "failed", "undelivered", "canceled":
		return "failed"
	case "delivered":
		return "delivered"
	default: // queued, sending, sent
		return "sent"
	}
}
