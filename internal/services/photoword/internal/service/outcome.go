package service

import (
	"errors"
	"fmt"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/extract"
)

// Outcome tells the caller what happened to a photo.
type Outcome string

const (
	OutcomeOK         Outcome = "ok"
	OutcomeEmpty      Outcome = "empty"
	OutcomeMalformed  Outcome = "malformed"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeUnexpected Outcome = "unexpected"
	OutcomeDuplicate  Outcome = "duplicate"
)

// Persisted reports whether the outcome means the photo was stored.
func (o Outcome) Persisted() bool {
	return o == OutcomeOK
}

// outcomeOf maps an extraction error to its outcome. Items are only
// consulted when err is nil.
func outcomeOf(n int, err error) Outcome {
	switch {
	case err == nil && n == 0:
		return OutcomeEmpty
	case err == nil:
		return OutcomeOK
	case errors.Is(err, extract.ErrMalformedResponse):
		return OutcomeMalformed
	case errors.Is(err, extract.ErrTimeout):
		return OutcomeTimeout
	}
	return OutcomeUnexpected
}

func notice(o Outcome, saved int, err error) string {
	switch o {
	case OutcomeOK:
		if saved > 0 {
			return fmt.Sprintf("Saved %d words from this photo.", saved)
		}
		return ""
	case OutcomeEmpty:
		return "No vocabulary was found in this photo. Try again or choose another photo."
	case OutcomeMalformed:
		return "The analysis result could not be read. Please try again."
	case OutcomeTimeout:
		return "The analysis took too long. Please try again in a moment."
	case OutcomeUnexpected:
		if err != nil {
			return fmt.Sprintf("An unexpected error occurred during analysis: %v", err)
		}
		return "An unexpected error occurred during analysis."
	case OutcomeDuplicate:
		return "This photo has already been processed."
	}
	return ""
}
