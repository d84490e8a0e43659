package async

import (
	"context"

	"github.com/teranos/OPTIX/errors"
)

// Handler executes jobs of one kind. Implementations live in the domain
// packages (graph, history, scip) and are registered on the dispatcher
// before the pool starts.
type Handler interface {
	// Kind returns the job kind this handler executes
	Kind() JobKind
	// Handle runs the job to completion. A returned error fails the job;
	// the worker records its first line as the job's error message.
	Handle(ctx context.Context, job *Job) error
}

// Dispatcher routes claimed jobs to their registered handler by kind.
type Dispatcher struct {
	handlers map[JobKind]Handler
}

// NewDispatcher creates an empty dispatcher. Register handlers before
// starting the worker pool.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[JobKind]Handler),
	}
}

// Register adds a handler for its kind. Registering an invalid kind or
// the same kind twice is a programming error and is rejected.
func (d *Dispatcher) Register(h Handler) error {
	kind := h.Kind()
	if !IsValidKind(string(kind)) {
		return errors.Wrapf(errors.ErrUnsupportedJobKind, "cannot register handler for kind %q", kind)
	}
	if _, dup := d.handlers[kind]; dup {
		return errors.Newf("handler already registered for kind %q", kind)
	}
	d.handlers[kind] = h
	return nil
}

// Kinds returns the kinds with registered handlers. The worker pool
// claims only these, leaving other kinds for pools that can run them.
func (d *Dispatcher) Kinds() []JobKind {
	kinds := make([]JobKind, 0, len(d.handlers))
	for _, kind := range []JobKind{KindScipIndex, KindGraphBuild, KindGitMine} {
		if _, ok := d.handlers[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Dispatch runs the job through its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, job *Job) error {
	h, ok := d.handlers[job.Kind]
	if !ok {
		return errors.Wrapf(errors.ErrUnsupportedJobKind, "kind %q", job.Kind)
	}
	return h.Handle(ctx, job)
}
