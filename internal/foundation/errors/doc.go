// Package errors provides the classified error primitives used across pipelib.
//
// A ClassifiedError carries a category (config, stage, approval, scm, ...), a severity
// and a retry strategy so that callers can route failures without string matching.
// Errors are built with the fluent ErrorBuilder:
//
//	err := errors.ConfigError("release stage requires a stage timeout").
//		WithContext("stage", "release").
//		Build()
//
// The CLI adapter maps categories to process exit codes.
package errors
