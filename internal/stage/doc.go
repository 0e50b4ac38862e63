// Package stage implements the sequential pipeline state machine: declared stages,
// their one-time status, the monotonically worsening pipeline result, and the
// executor that evaluates skip predicates and classifies stage outcomes.
package stage
