// ABOUTME: Typed run failures for the mirror pipeline
// ABOUTME: Tags each terminal failure with a stage and maps it to an HTTP status class
package sync

import (
	"errors"
	"fmt"
	"net/http"
)

// Stage names the pipeline step that aborted a run.
type Stage string

const (
	StageInput  Stage = "input"
	StageAuth   Stage = "auth"
	StageFetch  Stage = "fetch"
	StageConfig Stage = "config"
)

// Sentinel kinds, matched with errors.Is against a *RunError.
var (
	ErrMissingCredential   = errors.New("missing credential")
	ErrInvalidCredential   = errors.New("invalid stored credential")
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrFetchFailed         = errors.New("fetch failed")
	ErrMisconfigured       = errors.New("misconfigured")
)

// RunError is the single terminal error a run can produce.
type RunError struct {
	Stage   Stage
	Kind    error
	Message string
	// Detail carries upstream diagnostics. It never contains secret material.
	Detail string
	Err    error
}

func (e *RunError) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Stage, msg, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Stage, msg)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel kind.
func (e *RunError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// HTTPStatus maps the stage to the status class exposed by HTTP fronts.
func (e *RunError) HTTPStatus() int {
	switch e.Stage {
	case StageInput:
		return http.StatusBadRequest
	case StageAuth:
		if e.Kind == ErrMissingCredential {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	case StageFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf returns the HTTP status class for any error produced by a run.
func StatusOf(err error) int {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

func inputError(kind error, msg string, err error) *RunError {
	return &RunError{Stage: StageInput, Kind: kind, Message: msg, Err: err}
}

func authError(kind error, msg, detail string, err error) *RunError {
	return &RunError{Stage: StageAuth, Kind: kind, Message: msg, Detail: detail, Err: err}
}

func fetchError(msg string, err error) *RunError {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &RunError{Stage: StageFetch, Kind: ErrFetchFailed, Message: msg, Detail: detail, Err: err}
}

func configError(msg string) *RunError {
	return &RunError{Stage: StageConfig, Kind: ErrMisconfigured, Message: msg}
}
