package git

import (
	"strings"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// classify translates go-git failures into SCM errors. Transient network
// failures are marked retryable.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())
	builder := errors.SCMError("git "+op+" failed").
		WithCause(err).
		WithContext("op", op)

	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "not authorized") || strings.Contains(l, "invalid credentials"):
		builder.UserAction()
	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") || strings.Contains(l, "timeout") || strings.Contains(l, "no route to host"):
		builder.Retryable()
	case strings.Contains(l, "non-fast-forward") || strings.Contains(l, "diverged"):
		builder.WithContext("diverged", true).UserAction()
	}
	return builder.Build()
}
