package tools

import (
	"errors"
	"fmt"

	"github.com/SolanceLab/garmin-mcp/internal/garmin"
	"github.com/SolanceLab/garmin-mcp/internal/session"
)

// Kind tags a failed invocation with its taxonomy category. Classification
// runs in priority order: unauthenticated, remote, validation, unknown.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindRemote          Kind = "remote"
	KindValidation      Kind = "validation"
	KindUnknown         Kind = "unknown"
)

// ValidationError marks input rejected locally, before any remote call.
// Its message goes into the envelope verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Classify maps a handler failure to its taxonomy kind and the message the
// envelope reports. Remote failures get a prefix so the consuming agent can
// tell them from local ones.
func Classify(err error) (Kind, string) {
	var verr *ValidationError
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		return KindUnauthenticated, err.Error()
	case garmin.IsRemote(err):
		return KindRemote, "Garmin API error: " + err.Error()
	case errors.As(err, &verr):
		return KindValidation, verr.Msg
	default:
		return KindUnknown, err.Error()
	}
}
