package pipeline

import (
	"context"

	"github.com/bardify/api/internal/model"
)

// Executor performs one step kind. Execute returns the outcome detail for
// the result record; a non-nil error marks the step failed. Fatal executors
// abort the remaining steps on failure, everything else degrades the run to
// completed_with_errors and continues.
type Executor interface {
	Kind() string
	Fatal() bool
	Execute(ctx context.Context, pc *Context, step model.Step) (map[string]interface{}, error)
}

// SkipError marks a step whose prerequisites are absent. The runner records
// the step as skipped instead of failed and the run is not degraded.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return e.Reason }

// Registry maps step kinds to executors. Registration happens once at
// startup; lookups during runs are read-only.
type Registry struct {
	executors map[string]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

func (r *Registry) Register(e Executor) {
	r.executors[e.Kind()] = e
}

func (r *Registry) Lookup(kind string) (Executor, bool) {
	e, ok := r.executors[kind]
	return e, ok
}
