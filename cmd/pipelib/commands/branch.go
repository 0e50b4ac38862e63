package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/pipelib/internal/git"
)

// BranchCmd implements the 'branch' command.
type BranchCmd struct {
	Name string `arg:"" optional:"" help:"Branch name; the checked out branch when empty"`
}

func (b *BranchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	r, err := cfg.Resolver()
	if err != nil {
		return err
	}
	name := b.Name
	if name == "" {
		repo, err := git.Open(cfg.Project.Workspace)
		if err != nil {
			return err
		}
		if name, err = repo.CurrentBranch(context.Background()); err != nil {
			return err
		}
	}
	for _, line := range describePolicy(r.Resolve(name)) {
		fmt.Println(line)
	}
	return nil
}
