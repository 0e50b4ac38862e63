// Package ci declares the collaborators a pipeline run depends on. Each interface
// is narrow so tests can substitute in-memory fakes.
package ci

import (
	"context"
	stderrors "errors"
	"time"
)

// ShellResult is the captured outcome of a shell command.
type ShellResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ShellRunner executes commands in the workspace.
type ShellRunner interface {
	// Run executes command. A non-zero exit is returned as an error together with
	// the populated result.
	Run(ctx context.Context, command string) (ShellResult, error)
}

// FileStore reads and writes workspace files by relative path.
type FileStore interface {
	Exists(path string) bool
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	// Glob lists workspace-relative paths matching pattern.
	Glob(pattern string) ([]string, error)
}

// SourceControl is the subset of git operations a release needs.
type SourceControl interface {
	CurrentBranch(ctx context.Context) (string, error)
	LastCommitMessage(ctx context.Context) (string, error)
	TagExists(ctx context.Context, tag string) (bool, error)
	CreateTag(ctx context.Context, tag, message string) error
	// Commit records the given workspace paths with message.
	Commit(ctx context.Context, message string, paths ...string) error
	// Push sends the current branch and tags to the remote.
	Push(ctx context.Context) error
}

// UploadFile maps one local file to a repository target path.
type UploadFile struct {
	Pattern string `json:"pattern"`
	Target  string `json:"target"`
}

// UploadSpec is the list of files to upload in one request.
type UploadSpec struct {
	Files []UploadFile `json:"files"`
}

// ArtifactRepository stores published artifacts.
type ArtifactRepository interface {
	Upload(ctx context.Context, spec UploadSpec) error
	// Download fetches stored artifacts. Pattern names the stored target and
	// Target the workspace path to write.
	Download(ctx context.Context, spec UploadSpec) error
	// Search lists stored targets under prefix.
	Search(ctx context.Context, prefix string) ([]string, error)
	// Promote copies a stored artifact to another target.
	Promote(ctx context.Context, from, to string) error
}

// ErrInputInterrupted is the single signal a HumanInputChannel raises when a
// wait ends without a choice, whether by timeout or by an operator abort.
var ErrInputInterrupted = stderrors.New("human input interrupted")

// Choice is an approver's answer.
type Choice struct {
	Option   string `json:"choice"`
	Approver string `json:"approver"`
}

// InputRequest describes a question put to approvers.
type InputRequest struct {
	ID        string   `json:"id"`
	Message   string   `json:"message"`
	Options   []string `json:"options"`
	Approvers []string `json:"approvers,omitempty"`
}

// HumanInputChannel blocks until a human picks one of the options or the wait
// ends. Expiry and aborts both return an error wrapping ErrInputInterrupted.
type HumanInputChannel interface {
	RequestChoice(ctx context.Context, req InputRequest, timeout time.Duration) (Choice, error)
}

// Message is a notification addressed to a set of recipients.
type Message struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	HTML       string   `json:"html,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
}

// Notifier delivers messages. Delivery failures never fail a stage.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}
