package config

import (
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

const exampleYAML = `# pipelib pipeline file
project:
  flavor: generic        # generic, nodejs or gradle
  name: my-app
  # version_file: VERSION

# Branch policies override the built-in ones (master, main, vN.x/master,
# staging, vN.x/staging, develop). A matching pattern replaces the entry.
branches:
  - pattern: "feature/.*"
    release_tag: "feature"
    build_history: 5

stages:
  build:
    timeout: 1h
  test:
    timeout: 1h
    # reports: build/test-results/*.xml

publish:
  repository: libs-snapshot-local
  root: .pipelib/artifacts
  poll:
    interval: 5s

release:
  timeout: 30m
  approvers: [release-manager]
  repository: libs-release-local

approval:
  channel: http
  addr: ":8089"
  # tokens:
  #   ${APPROVER_TOKEN}: release-manager

notify:
  recipients: [team@example.com]
  # nats_url: nats://localhost:4222

events:
  path: .pipelib/events.db

# schedule:
#   cron: "0 2 * * *"
`

const exampleTOML = `# pipelib pipeline file
[project]
flavor = "generic"
name = "my-app"

[[branches]]
pattern = "feature/.*"
release_tag = "feature"
build_history = 5

[stages.build]
timeout = "1h"

[stages.test]
timeout = "1h"

[publish]
repository = "libs-snapshot-local"
root = ".pipelib/artifacts"

[publish.poll]
interval = "5s"

[release]
timeout = "30m"
approvers = ["release-manager"]
repository = "libs-release-local"

[approval]
channel = "http"
addr = ":8089"

[notify]
recipients = ["team@example.com"]

[events]
path = ".pipelib/events.db"
`

// Example returns a starter pipeline file in the given format.
func Example(format Format) string {
	if format == FormatTOML {
		return exampleTOML
	}
	return exampleYAML
}

// Init writes a starter pipeline file. An existing file is only replaced when
// force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ConfigError("pipeline file already exists").
			WithContext("path", path).
			WithContext("hint", "use --force to overwrite").
			UserAction().
			Build()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.FileSystemError("failed to create directory").WithCause(err).WithContext("path", dir).Build()
		}
	}
	if err := os.WriteFile(path, []byte(Example(FormatFor(path))), 0o600); err != nil {
		return errors.FileSystemError("failed to write pipeline file").WithCause(err).WithContext("path", path).Build()
	}
	return nil
}
