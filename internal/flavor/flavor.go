// Package flavor holds the per-ecosystem build strategies. A Flavor is a plain
// value of functions; the pipeline driver is the same for every flavor.
package flavor

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
)

// Env is what a strategy may touch.
type Env struct {
	Shell ci.ShellRunner
	Files ci.FileStore
	// Command replaces the flavor's default command when set.
	Command string
	// Patterns replaces the flavor's default artifact globs when set.
	Patterns []string
}

// Package is the project metadata read from the flavor's manifest.
type Package struct {
	Name    string
	Version string
	// Manifest is the workspace path the version was read from.
	Manifest string
}

// Versioner reads and rewrites the project version.
type Versioner struct {
	Read func(files ci.FileStore) (Package, error)
	// Bump writes next into the manifest and returns the path it changed.
	Bump func(files ci.FileStore, next string) (string, error)
}

// Flavor is one ecosystem's build strategy.
type Flavor struct {
	Name    string
	Build   func(ctx context.Context, env Env) error
	Test    func(ctx context.Context, env Env) error
	Publish func(ctx context.Context, env Env) ([]string, error)
	Version Versioner
	// Reports is the default JUnit report glob.
	Reports string
}

// Lookup returns the named flavor. versionFile only applies to the generic flavor.
func Lookup(name, versionFile string) (Flavor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "generic":
		return Generic(versionFile), nil
	case "nodejs", "node", "npm":
		return NodeJS(), nil
	case "gradle", "java":
		return Gradle(), nil
	default:
		return Flavor{}, errors.ConfigError("unknown project flavor").
			WithContext("flavor", name).
			WithContext("known", Names()).
			Build()
	}
}

// Names lists the canonical flavor names.
func Names() []string { return []string{"generic", "gradle", "nodejs"} }

// shellStep returns a step running env.Command or def.
func shellStep(def string) func(context.Context, Env) error {
	return func(ctx context.Context, env Env) error {
		cmd := env.Command
		if cmd == "" {
			cmd = def
		}
		if cmd == "" {
			return nil
		}
		slog.Debug("Running flavor command", logfields.Command(cmd))
		_, err := env.Shell.Run(ctx, cmd)
		return err
	}
}

// globArtifacts returns the sorted union of files matching patterns.
func globArtifacts(files ci.FileStore, patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range patterns {
		matches, err := files.Glob(p)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryValidation, "invalid artifact pattern").
				WithContext("pattern", p).Build()
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func publishStep(prepare string, defaults ...string) func(context.Context, Env) ([]string, error) {
	return func(ctx context.Context, env Env) ([]string, error) {
		if prepare != "" && len(env.Patterns) == 0 {
			if _, err := env.Shell.Run(ctx, prepare); err != nil {
				return nil, err
			}
		}
		patterns := env.Patterns
		if len(patterns) == 0 {
			patterns = defaults
		}
		return globArtifacts(env.Files, patterns)
	}
}
