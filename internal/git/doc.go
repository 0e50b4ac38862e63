// Package git implements the source control operations a release needs on top
// of go-git: branch and commit inspection, release tags, version bump commits
// and pushes to the remote.
package git
