package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrMissingArtifact = errors.New("missing artifact")
	ErrProvider        = errors.New("provider failure")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorKind names the failure category carried by an error.
type ErrorKind string

const (
	KindInput         ErrorKind = "input"
	KindProvider      ErrorKind = "provider"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindCancelled     ErrorKind = "cancelled"
	KindTransient     ErrorKind = "transient"
)

// ErrorDetails is the log- and notification-friendly view of a failure.
type ErrorDetails struct {
	Kind    ErrorKind
	Message string
	Hint    string
}

// Details classifies err by marker and pairs it with an operator hint.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Message: strings.TrimSpace(err.Error())}
	switch {
	case errors.Is(err, context.Canceled):
		details.Kind = KindCancelled
		details.Hint = "the run was cancelled; start it again when ready"
	case errors.Is(err, ErrMissingArtifact):
		details.Kind = KindInput
		details.Hint = "an earlier stage did not produce its artifact; reset and rerun the workflow"
	case errors.Is(err, ErrValidation):
		details.Kind = KindValidation
		details.Hint = "check the input content and generation parameters"
	case errors.Is(err, ErrConfiguration):
		details.Kind = KindConfiguration
		details.Hint = "check the configuration file and provider credentials"
	case errors.Is(err, ErrNotFound):
		details.Kind = KindNotFound
		details.Hint = "verify the identifier still exists"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		details.Kind = KindTimeout
		details.Hint = "the provider did not answer in time; retry later or raise the timeout"
	case errors.Is(err, ErrProvider):
		details.Kind = KindProvider
		details.Hint = "the AI provider rejected the request; inspect the provider response"
	default:
		details.Kind = KindTransient
		details.Hint = "retry the operation; check logs if it keeps failing"
	}
	return details
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
