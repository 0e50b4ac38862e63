package stage

import (
	"fmt"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// Registry owns the ordered list of declared stages. Execution order is declaration
// order; there is no dependency graph.
type Registry struct {
	stages []*Stage
	byName map[string]*Stage

	firstFailing    string
	firstFailingErr error
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Stage)}
}

// Declare appends a stage. Singleton kinds may only be declared once and stage
// names must be unique. A stage carrying a SetupErr becomes the first failing
// stage if none was recorded before it.
func (r *Registry) Declare(s *Stage) error {
	if s == nil || s.Name == "" {
		return errors.ConfigError("stage name is required").Build()
	}
	if s.Kind == "" {
		s.Kind = KindCustom
	}
	if s.Kind.Singleton() {
		for _, existing := range r.stages {
			if existing.Kind == s.Kind {
				return &DuplicateStageError{Kind: s.Kind, Stage: s.Name, Existing: existing.Name}
			}
		}
	}
	if _, dup := r.byName[s.Name]; dup {
		return errors.ConfigError(fmt.Sprintf("stage %q is already declared", s.Name)).
			WithContext("stage", s.Name).
			Build()
	}
	if s.Body == nil && s.SetupErr == nil {
		return errors.ConfigError(fmt.Sprintf("stage %q has no body", s.Name)).Build()
	}
	s.ordinal = len(r.stages)
	s.status = StatusNotRun
	r.stages = append(r.stages, s)
	r.byName[s.Name] = s
	if s.SetupErr != nil {
		r.SetFirstFailing(s.Name, s.SetupErr)
	}
	return nil
}

// ExecutionOrder returns the declared stages in declaration order.
func (r *Registry) ExecutionOrder() []*Stage {
	out := make([]*Stage, len(r.stages))
	copy(out, r.stages)
	return out
}

// Lookup returns a declared stage by name.
func (r *Registry) Lookup(name string) (*Stage, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// ByKind returns the first declared stage of the given kind.
func (r *Registry) ByKind(kind Kind) (*Stage, bool) {
	for _, s := range r.stages {
		if s.Kind == kind {
			return s, true
		}
	}
	return nil, false
}

// Len returns the number of declared stages.
func (r *Registry) Len() int { return len(r.stages) }

// SetFirstFailing records the earliest stage whose setup validation failed.
// Later calls are ignored once a stage has been recorded.
func (r *Registry) SetFirstFailing(name string, err error) {
	if r.firstFailing != "" || err == nil {
		return
	}
	r.firstFailing = name
	r.firstFailingErr = err
}

// FirstFailing returns the earliest stage whose setup validation failed and its
// error. The error is nil when every stage validated.
func (r *Registry) FirstFailing() (string, error) {
	return r.firstFailing, r.firstFailingErr
}
