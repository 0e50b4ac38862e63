package config

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

//go:embed schema.json
var schemaJSON []byte

var (
	compiledSchema *gojsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

func getSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return compiledSchema, compileErr
}

// SchemaViolations checks a decoded document against the pipeline file schema
// and returns one description per violation.
func SchemaViolations(doc map[string]any) ([]string, error) {
	schema, err := getSchema()
	if err != nil {
		return nil, errors.InternalError("failed to compile pipeline file schema").WithCause(err).Build()
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to validate pipeline file").Build()
	}
	if result.Valid() {
		return nil, nil
	}
	out := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		out = append(out, e.String())
	}
	return out, nil
}

func validateSchema(doc map[string]any) error {
	violations, err := SchemaViolations(doc)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}
	return errors.ConfigError("pipeline file does not match schema").
		WithContext("violations", strings.Join(violations, "; ")).
		Build()
}
