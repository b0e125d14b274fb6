// Package phone validates and canonicalizes recipient numbers. All queued
// sends carry an E.164 number; anything that fails validation is rejected
// before it reaches the queue.
package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

type InvalidNumberError struct {
	Raw    string
	Reason string
}

func (e *InvalidNumberError) Error() string {
	return fmt.Sprintf("invalid phone number %q: %s", e.Raw, e.Reason)
}

// Normalize parses raw into E.164. region is the two-letter country hint
// ("US", "FR") applied when the number is not already international; it may
// be empty for numbers with a leading +. Purely syntactic, no I/O.
func Normalize(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", &InvalidNumberError{Raw: raw, Reason: err.Error()}
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", &InvalidNumberError{Raw: raw, Reason: "not a valid number for its region"}
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
