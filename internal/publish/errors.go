package publish

import (
	"fmt"
	"sort"
	"strings"
)

// JobError attributes a failure to one document.
type JobError struct {
	Document string
	Err      error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %v", e.Document, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// AggregateError is returned by RunAll when one or more jobs failed.
// Errors are sorted by document name.
type AggregateError struct {
	Errors []*JobError
}

func newAggregateError(errs []*JobError) *AggregateError {
	sorted := append([]*JobError(nil), errs...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Document < sorted[j].Document
	})
	return &AggregateError{Errors: sorted}
}

func (e *AggregateError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, je := range e.Errors {
		parts[i] = je.Error()
	}
	noun := "documents"
	if len(e.Errors) == 1 {
		noun = "document"
	}
	return fmt.Sprintf("%d %s failed to sync: %s", len(e.Errors), noun, strings.Join(parts, "; "))
}

// Unwrap exposes every job error to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, je := range e.Errors {
		out[i] = je
	}
	return out
}

// Documents returns the names of the failed documents.
func (e *AggregateError) Documents() []string {
	out := make([]string, len(e.Errors))
	for i, je := range e.Errors {
		out[i] = je.Document
	}
	return out
}
