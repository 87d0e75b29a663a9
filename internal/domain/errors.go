package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages. Handlers map these onto HTTP
// status codes; the pipeline uses them to decide what is stage-local and
// what aborts a request.
var (
	// ErrInput marks malformed or missing request fields. Client-attributable.
	ErrInput = errors.New("invalid input")

	// ErrNotFound marks an unknown track namespace or absent artifact.
	ErrNotFound = errors.New("not found")

	// ErrMissingModality is returned at inference gather time when a
	// required modality artifact is absent. The model is never invoked.
	ErrMissingModality = errors.New("missing modality")

	// ErrModelLoad marks a failed weight load. Fatal for the current
	// request only; the next request retries the load.
	ErrModelLoad = errors.New("model load failed")

	// ErrDecode marks malformed audio input to the transcoder.
	ErrDecode = errors.New("audio decode failed")

	// ErrExtraction marks a failed external descriptor extraction.
	ErrExtraction = errors.New("descriptor extraction failed")

	// ErrUpstreamFetch marks a failed source download.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
)

// InputError wraps ErrInput with a field name.
func InputError(field, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrInput, field, msg)
}

// StageError records a stage-local failure. The orchestrator converts these
// into false status flags and never escalates them to the caller.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err as local to the named stage.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
