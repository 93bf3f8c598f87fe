package orchestrator

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when Run is called with a blank question.
var ErrEmptyInput = errors.New("question must not be empty")

// ErrNoAnswers is returned when summarization is attempted with no backend
// output. The router never routes that way; seeing this error means a bug.
var ErrNoAnswers = errors.New("no answers to summarize")

// UnrecognizedIntentError reports a classifier label outside the closed
// {sql, rag, hybrid} set.
type UnrecognizedIntentError struct {
	Label string
}

func (e *UnrecognizedIntentError) Error() string {
	return fmt.Sprintf("unrecognized intent label %q", e.Label)
}

// ClassificationError means the routing decision itself failed. No backend
// node executed and no partial output exists.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// SummarizationError means the terminal synthesis step failed. The backend
// outputs gathered before the failure remain available in the Result.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }
