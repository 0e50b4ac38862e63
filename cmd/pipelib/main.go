package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pipelib/cmd/pipelib/commands"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("pipelib"),
		kong.Description("Branch-aware build, publish and release pipelines."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)

	err := parser.Run(&commands.Global{Logger: slog.Default()}, &cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
