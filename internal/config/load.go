package config

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// Format is the encoding of a pipeline file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the encoding from the file extension. Anything that is not
// .toml is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// EnvFiles are loaded before the pipeline file, in order.
var EnvFiles = []string{".env", ".env.local"}

// Load reads, expands, decodes, defaults and validates a pipeline file.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("pipeline file not found").
				WithContext("path", path).
				WithContext("hint", "create one with 'pipelib init'").
				UserAction().
				Build()
		}
		return nil, errors.FileSystemError("failed to read pipeline file").
			WithCause(err).WithContext("path", path).Build()
	}
	cfg, err := Parse(data, FormatFor(path))
	if err != nil {
		if ce, ok := errors.AsClassified(err); ok {
			return nil, ce.WithContext("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a pipeline document, then applies defaults and validates it.
func Parse(data []byte, format Format) (*Config, error) {
	expanded := []byte(expandEnv(string(data)))

	raw, err := decodeRaw(expanded, format)
	if err != nil {
		return nil, err
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var cfg Config
	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(expanded), &cfg)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "invalid TOML pipeline file").Build()
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, errors.ConfigError("unknown keys in pipeline file").
				WithContext("keys", strings.Join(keys, ", ")).Build()
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
			return nil, errors.WrapError(err, errors.CategoryConfig, "invalid YAML pipeline file").Build()
		}
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envRef matches $NAME and ${NAME} where NAME is a shell identifier.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnv substitutes $VAR and ${VAR}. Every other dollar sequence, such as
// the $1 capture references of release tags or the $ anchors of branch
// patterns, is kept verbatim.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		return os.Getenv(name)
	})
}

// decodeRaw decodes into generic maps for schema validation.
func decodeRaw(data []byte, format Format) (map[string]any, error) {
	raw := map[string]any{}
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "invalid TOML pipeline file").Build()
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "invalid YAML pipeline file").Build()
		}
	}
	return raw, nil
}

// loadEnvFiles loads the optional env files. godotenv.Load never overrides
// variables already set in the process.
func loadEnvFiles() {
	for _, name := range EnvFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		_ = godotenv.Load(name)
	}
}
