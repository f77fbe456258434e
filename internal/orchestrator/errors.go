package orchestrator

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrEmptyQuery    = errors.New("query cannot be empty")
	ErrNoUserMessage = errors.New("conversation has no user message")
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageConfig   Stage = "config"
	StageEmbed    Stage = "embed"
	StageRetrieve Stage = "retrieve"
	StageIndex    Stage = "index"
	StageGenerate Stage = "generate"
)

// PipelineError is the single error type returned by the pipeline. Err
// carries the original cause with a stack trace attached at the point of
// wrapping; errors.Is and errors.As reach the cause through it.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("answer pipeline failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Stack renders the cause with its stack trace for diagnostics.
func (e *PipelineError) Stack() string {
	return fmt.Sprintf("%+v", e.Err)
}

// wrapStage wraps err once. Errors that are already a *PipelineError pass
// through unchanged.
func wrapStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Stage: stage, Err: errors.WithStack(err)}
}
