// Package pipeline is the generic pipeline driver. A project declares its build,
// test, publish and release stages against a Pipeline configured with a
// flavor; Run executes them in order after an implicit checkout stage that
// resolves the branch policy and the package version.
package pipeline
