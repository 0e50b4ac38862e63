package git

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
)

// BranchEnvVars are consulted in order when HEAD is detached, which is the
// normal state of a CI checkout.
var BranchEnvVars = []string{"BRANCH_NAME", "GIT_BRANCH", "CI_COMMIT_REF_NAME", "GITHUB_REF_NAME"}

// Repository is a working copy. It implements ci.SourceControl.
type Repository struct {
	Remote string
	Auth   transport.AuthMethod
	Name   string
	Email  string
	Now    func() time.Time

	repo   *git.Repository
	lookup func(string) (string, bool)
}

// Option configures a Repository.
type Option func(*Repository)

// WithRemote sets the remote used by Push. Defaults to origin.
func WithRemote(name string) Option { return func(r *Repository) { r.Remote = name } }

// WithAuth sets credentials for Push.
func WithAuth(m transport.AuthMethod) Option { return func(r *Repository) { r.Auth = m } }

// WithIdentity sets the author of tags and commits.
func WithIdentity(name, email string) Option {
	return func(r *Repository) { r.Name, r.Email = name, email }
}

// Open opens the working copy containing dir.
func Open(dir string, opts ...Option) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.SCMError("failed to open git repository").
			WithCause(err).
			WithContext("dir", dir).
			Build()
	}
	r := &Repository{
		Remote: git.DefaultRemoteName,
		Name:   "pipelib",
		Email:  "pipelib@localhost",
		Now:    time.Now,
		repo:   repo,
		lookup: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// CurrentBranch returns the checked out branch. With a detached HEAD the CI
// environment variables are consulted.
func (r *Repository) CurrentBranch(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", classify(err, "head")
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	for _, key := range BranchEnvVars {
		if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
			branch := strings.TrimPrefix(strings.TrimSpace(v), "origin/")
			slog.Debug("Detached HEAD, branch taken from environment", slog.String("var", key), logfields.Branch(branch))
			return branch, nil
		}
	}
	return "", errors.SCMError("HEAD is detached and no branch variable is set").
		WithContext("commit", head.Hash().String()).
		UserAction().
		Build()
}

// LastCommitMessage returns the message of the HEAD commit.
func (r *Repository) LastCommitMessage(_ context.Context) (string, error) {
	c, err := r.headCommit()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(c.Message), nil
}

// TagExists reports whether tag is present locally.
func (r *Repository) TagExists(_ context.Context, tag string) (bool, error) {
	_, err := r.repo.Tag(tag)
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, git.ErrTagNotFound):
		return false, nil
	default:
		return false, classify(err, "tag lookup")
	}
}

// CreateTag creates an annotated tag on HEAD.
func (r *Repository) CreateTag(_ context.Context, tag, message string) error {
	head, err := r.repo.Head()
	if err != nil {
		return classify(err, "head")
	}
	if message == "" {
		message = tag
	}
	if _, err := r.repo.CreateTag(tag, head.Hash(), &git.CreateTagOptions{
		Tagger:  r.signature(),
		Message: message,
	}); err != nil {
		if stderrors.Is(err, git.ErrTagExists) {
			return errors.SCMError("tag already exists").WithCause(err).WithContext("tag", tag).Build()
		}
		return classify(err, "tag")
	}
	slog.Info("Created tag", logfields.Tag(tag), slog.String("commit", head.Hash().String()[:8]))
	return nil
}

// Commit stages paths and commits them.
func (r *Repository) Commit(_ context.Context, message string, paths ...string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return classify(err, "worktree")
	}
	for _, p := range paths {
		if _, err := wt.Add(p); err != nil {
			return errors.SCMError("failed to stage file").WithCause(err).WithContext("path", p).Build()
		}
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: r.signature()})
	if err != nil {
		return classify(err, "commit")
	}
	slog.Info("Committed", slog.String("commit", hash.String()[:8]), slog.Int("files", len(paths)))
	return nil
}

// Push sends the current branch and all tags to the remote.
func (r *Repository) Push(ctx context.Context) error {
	head, err := r.repo.Head()
	if err != nil {
		return classify(err, "head")
	}
	specs := []gitconfig.RefSpec{"refs/tags/*:refs/tags/*"}
	if head.Name().IsBranch() {
		ref := head.Name().String()
		specs = append([]gitconfig.RefSpec{gitconfig.RefSpec(ref + ":" + ref)}, specs...)
	}
	err = r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: r.Remote,
		RefSpecs:   specs,
		Auth:       r.Auth,
	})
	if err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return classify(err, "push")
	}
	slog.Info("Pushed", slog.String("remote", r.Remote), logfields.Branch(head.Name().Short()))
	return nil
}

func (r *Repository) headCommit() (*object.Commit, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, classify(err, "head")
	}
	c, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, classify(err, "commit lookup")
	}
	return c, nil
}

func (r *Repository) signature() *object.Signature {
	return &object.Signature{Name: r.Name, Email: r.Email, When: r.Now()}
}

// Checkout switches the working copy to a local branch, mainly for tests and
// the init command.
func (r *Repository) Checkout(branch string, create bool) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return classify(err, "worktree")
	}
	return classify(wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: create,
	}), "checkout")
}
