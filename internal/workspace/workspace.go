package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	securejoin "github.com/cyphar/filepath-securejoin"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
)

// Dir is a FileStore rooted at a project directory.
type Dir struct {
	root string
}

// Open returns a Dir for root, which must exist.
func Open(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "resolve workspace path").Build()
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "workspace not found").
			WithContext("path", abs).Build()
	}
	if !info.IsDir() {
		return nil, errors.FileSystemError("workspace is not a directory").WithContext("path", abs).Build()
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute workspace path.
func (d *Dir) Root() string { return d.root }

// Resolve returns the absolute path for rel, confined to the workspace.
func (d *Dir) Resolve(rel string) (string, error) {
	p, err := securejoin.SecureJoin(d.root, rel)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, fmt.Sprintf("resolve %q", rel)).Build()
	}
	return p, nil
}

// Exists reports whether rel exists.
func (d *Dir) Exists(rel string) bool {
	p, err := d.Resolve(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Read returns the contents of rel.
func (d *Dir) Read(rel string) ([]byte, error) {
	p, err := d.Resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p) // #nosec G304 -- path confined to workspace
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, fmt.Sprintf("read %s", rel)).Build()
	}
	return data, nil
}

// Write replaces rel with data, creating parent directories.
func (d *Dir) Write(rel string, data []byte) error {
	p, err := d.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "create parent directory").Build()
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, fmt.Sprintf("write %s", rel)).Build()
	}
	slog.Debug("Wrote workspace file", logfields.Path(rel))
	return nil
}

// Glob lists workspace-relative paths matching pattern in lexical order.
func (d *Dir) Glob(pattern string) ([]string, error) {
	if filepath.IsAbs(pattern) {
		return nil, errors.ValidationError("glob pattern must be relative to the workspace").
			WithContext("pattern", pattern).Build()
	}
	matches, err := filepath.Glob(filepath.Join(d.root, pattern))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, fmt.Sprintf("bad glob %q", pattern)).Build()
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(d.root, m)
		if err != nil {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out, nil
}
