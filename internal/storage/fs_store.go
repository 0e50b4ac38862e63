package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
)

const metaSuffix = ".meta.json"

// FSRepository is a filesystem artifact repository. Layout:
//
//	<base>/
//	  libs-snapshot-local/app/1.2.3-snapshot/app-1.2.3.tgz
//	  libs-snapshot-local/app/1.2.3-snapshot/app-1.2.3.tgz.meta.json
type FSRepository struct {
	basePath string
	source   ci.FileStore
	mu       sync.RWMutex
}

// NewFSRepository creates a repository at basePath. Upload reads local files from source.
func NewFSRepository(basePath string, source ci.FileStore) (*FSRepository, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, errors.WrapError(err, errors.CategoryArtifact, "create artifact repository").
			WithContext("path", basePath).Build()
	}
	return &FSRepository{basePath: basePath, source: source}, nil
}

// Upload copies every file in spec to its target.
func (r *FSRepository) Upload(ctx context.Context, spec ci.UploadSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range spec.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := r.source.Read(f.Pattern)
		if err != nil {
			return errors.WrapError(err, errors.CategoryArtifact, "read artifact").
				WithContext("source", f.Pattern).Build()
		}
		if err := r.put(f.Target, data, Metadata{Source: f.Pattern}); err != nil {
			return err
		}
		slog.Info("Uploaded artifact", logfields.Path(f.Pattern), logfields.Target(f.Target))
	}
	return nil
}

// Download writes each stored artifact named by Pattern to the workspace path Target.
func (r *FSRepository) Download(ctx context.Context, spec ci.UploadSpec) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range spec.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := r.path(f.Pattern)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(src) // #nosec G304 -- path confined to repository
		if err != nil {
			if os.IsNotExist(err) {
				return ErrNotFound{Target: f.Pattern}
			}
			return errors.WrapError(err, errors.CategoryArtifact, "read artifact").Build()
		}
		if err := r.source.Write(f.Target, data); err != nil {
			return errors.WrapError(err, errors.CategoryArtifact, "write downloaded artifact").
				WithContext("target", f.Target).Build()
		}
		slog.Info("Downloaded artifact", logfields.Path(f.Pattern), logfields.Target(f.Target))
	}
	return nil
}

// Search returns stored targets under prefix in lexical order.
func (r *FSRepository) Search(ctx context.Context, prefix string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	err := filepath.WalkDir(r.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(r.basePath, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, strings.TrimPrefix(prefix, "/")) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryArtifact, "search artifacts").Build()
	}
	sort.Strings(out)
	return out, nil
}

// Promote copies from to to, recording the origin in the metadata.
func (r *FSRepository) Promote(ctx context.Context, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := r.path(from)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src) // #nosec G304 -- path confined to repository
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound{Target: from}
		}
		return errors.WrapError(err, errors.CategoryArtifact, "read artifact").Build()
	}
	meta := Metadata{Source: from, PromotedFrom: from}
	if prev, err := r.readMetadata(from); err == nil {
		meta.Source = prev.Source
	}
	if err := r.put(to, data, meta); err != nil {
		return err
	}
	slog.Info("Promoted artifact", logfields.Path(from), logfields.Target(to))
	return nil
}

// Metadata returns the metadata stored for target.
func (r *FSRepository) Metadata(target string) (Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readMetadata(target)
}

func (r *FSRepository) put(target string, data []byte, meta Metadata) error {
	dst, err := r.path(target)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryArtifact, "create target directory").Build()
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryArtifact, "write artifact").
			WithContext("target", target).Build()
	}
	sum := sha256.Sum256(data)
	meta.SHA256 = hex.EncodeToString(sum[:])
	meta.Size = int64(len(data))
	meta.CreatedAt = time.Now().UTC()
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(dst+metaSuffix, raw, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryArtifact, "write metadata").Build()
	}
	return nil
}

func (r *FSRepository) readMetadata(target string) (Metadata, error) {
	p, err := r.path(target)
	if err != nil {
		return Metadata{}, err
	}
	raw, err := os.ReadFile(p + metaSuffix) // #nosec G304 -- path confined to repository
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, ErrNotFound{Target: target}
		}
		return Metadata{}, err
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

func (r *FSRepository) path(target string) (string, error) {
	t, err := cleanTarget(target)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.basePath, filepath.FromSlash(t)), nil
}
