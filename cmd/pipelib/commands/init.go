package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/pipelib/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing pipeline file"`
	Output string `short:"o" name:"output" help:"Directory to write pipelib.yaml into"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	if i.Output != "" {
		return RunInit(filepath.Join(i.Output, config.DefaultFile), i.Force)
	}
	return RunInit(root.Config, i.Force)
}

func RunInit(path string, force bool) error {
	fmt.Printf("Writing pipeline file to %s\n", path)
	if err := config.Init(path, force); err != nil {
		fmt.Println("Initialization failed")
		return err
	}
	fmt.Println("initialized successfully")
	return nil
}
