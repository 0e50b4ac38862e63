package commands

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/branch"
	"git.home.luguber.info/inful/pipelib/internal/flavor"
	"git.home.luguber.info/inful/pipelib/internal/versioning"
	"git.home.luguber.info/inful/pipelib/internal/workspace"
)

// CandidatesCmd implements the 'candidates' command.
type CandidatesCmd struct {
	Base       string `help:"Base version; read from the project manifest when empty"`
	Branch     string `help:"Take level and prerelease label from this branch's policy"`
	Level      string `help:"Largest permitted bump (PATCH, MINOR, MAJOR)"`
	Prerelease string `help:"Prerelease label"`
}

func (c *CandidatesCmd) Run(_ *Global, root *CLI) error {
	base := c.Base
	levelName := c.Level
	label := c.Prerelease

	if base == "" || c.Branch != "" {
		cfg, err := root.load()
		if err != nil {
			return err
		}
		if base == "" {
			ws, err := workspace.Open(cfg.Project.Workspace)
			if err != nil {
				return err
			}
			fl, err := flavor.Lookup(cfg.Project.Flavor, cfg.Project.VersionFile)
			if err != nil {
				return err
			}
			pkg, err := fl.Version.Read(ws)
			if err != nil {
				return err
			}
			base = pkg.Version
		}
		if c.Branch != "" {
			r, err := cfg.Resolver()
			if err != nil {
				return err
			}
			m := r.Resolve(c.Branch)
			if levelName == "" {
				levelName = string(m.Policy.Level)
			}
			if label == "" {
				label = m.Policy.Prerelease
			}
		}
	}

	return printCandidates(base, levelName, label, time.Now())
}

func printCandidates(base, levelName, label string, now time.Time) error {
	b, err := versioning.ParseBase(base)
	if err != nil {
		return err
	}
	level, err := versioning.ParseLevel(levelName)
	if err != nil {
		return err
	}
	if err := versioning.ValidatePrerelease(label); err != nil {
		return err
	}
	for i, cand := range versioning.Candidates(b, level, label, now) {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		kind := string(cand.Level)
		if cand.Current {
			kind = "CURRENT"
		}
		fmt.Printf("%s %-24s %s\n", marker, cand.Version, kind)
	}
	return nil
}

// describePolicy renders a resolved branch for the 'branch' command.
func describePolicy(m branch.Match) []string {
	p := m.Policy
	lines := []string{
		fmt.Sprintf("branch:               %s", m.Branch),
		fmt.Sprintf("tag:                  %s", m.Tag),
		fmt.Sprintf("matched:              %t", m.Matched),
	}
	if !m.Matched {
		return lines
	}
	return append(lines,
		fmt.Sprintf("pattern:              %s", p.Pattern),
		fmt.Sprintf("protected:            %t", p.Protected),
		fmt.Sprintf("allow_release:        %t", p.AllowRelease),
		fmt.Sprintf("allow_formal_release: %t", p.AllowFormalRelease),
		fmt.Sprintf("prerelease:           %s", p.Prerelease),
		fmt.Sprintf("auto_deploy:          %t", p.AutoDeploy),
		fmt.Sprintf("level:                %s", p.Level),
		fmt.Sprintf("build_history:        %d", p.BuildHistory),
	)
}
