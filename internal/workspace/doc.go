// Package workspace gives pipeline stages confined access to the checked-out
// project directory.
//
// All paths are relative to the workspace root. Paths that would escape the root,
// through ".." or symlinks, are resolved inside it instead.
package workspace
