package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/pipelib/internal/ci"
)

// MockRepository is an in-memory ArtifactRepository for tests. It records
// targets only; file contents are not read.
type MockRepository struct {
	// UploadErr, when set, is returned by Upload.
	UploadErr error

	mu      sync.RWMutex
	targets map[string]string
	calls   MockCalls
}

// MockCalls tracks method invocations for test verification.
type MockCalls struct {
	Upload   int
	Download int
	Search   int
	Promote  int
}

// NewMockRepository creates an empty in-memory repository.
func NewMockRepository() *MockRepository {
	return &MockRepository{targets: make(map[string]string)}
}

// Upload records each target with its source path.
func (m *MockRepository) Upload(_ context.Context, spec ci.UploadSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Upload++
	if m.UploadErr != nil {
		return m.UploadErr
	}
	for _, f := range spec.Files {
		t, err := cleanTarget(f.Target)
		if err != nil {
			return err
		}
		m.targets[t] = f.Pattern
	}
	return nil
}

// Download checks that every requested target exists.
func (m *MockRepository) Download(_ context.Context, spec ci.UploadSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Download++
	for _, f := range spec.Files {
		if _, ok := m.targets[f.Pattern]; !ok {
			return ErrNotFound{Target: f.Pattern}
		}
	}
	return nil
}

// Search lists recorded targets under prefix.
func (m *MockRepository) Search(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Search++
	var out []string
	for t := range m.targets {
		if strings.HasPrefix(t, prefix) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Promote records to with the source of from.
func (m *MockRepository) Promote(_ context.Context, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Promote++
	src, ok := m.targets[from]
	if !ok {
		return ErrNotFound{Target: from}
	}
	t, err := cleanTarget(to)
	if err != nil {
		return err
	}
	m.targets[t] = src
	return nil
}

// Targets returns all recorded targets.
func (m *MockRepository) Targets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.targets))
	for t := range m.targets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Calls returns the invocation counters.
func (m *MockRepository) Calls() MockCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
