// Package storage provides artifact repositories that published pipeline outputs
// are uploaded to and promoted within.
package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// Metadata is recorded next to every stored artifact.
type Metadata struct {
	SHA256    string    `json:"sha256"`
	Size      int64     `json:"size"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	// PromotedFrom is set on artifacts created by Promote.
	PromotedFrom string `json:"promoted_from,omitempty"`
}

// ErrNotFound is returned when a target does not exist in the repository.
type ErrNotFound struct {
	Target string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("artifact not found: %s", e.Target)
}

// IsNotFound checks if an error is ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}

// cleanTarget normalizes a repository target and rejects paths leaving the root.
func cleanTarget(target string) (string, error) {
	t := path.Clean("/" + strings.TrimSpace(target))
	t = strings.TrimPrefix(t, "/")
	if t == "" || t == "." || strings.HasSuffix(target, "/") {
		return "", errors.ValidationError("artifact target must name a file").
			WithContext("target", target).Build()
	}
	return t, nil
}
