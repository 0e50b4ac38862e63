// Package commands implements the pipelib command line.
package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pipelib/internal/config"
)

// Global is shared with every command.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command.
type CLI struct {
	Config    string           `short:"c" help:"Pipeline file path" default:"pipelib.yaml" env:"PIPELIB_CONFIG"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log format (text, json)" enum:"text,json" default:"text"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run        RunCmd        `cmd:"" help:"Run the pipeline for the current branch"`
	Candidates CandidatesCmd `cmd:"" help:"List release candidates for a base version"`
	Branch     BranchCmd     `cmd:"" help:"Show the policy and tag a branch resolves to"`
	History    HistoryCmd    `cmd:"" help:"List recent runs from the event store"`
	Serve      ServeCmd      `cmd:"" help:"Run the pipeline on a schedule and serve approvals and metrics"`
	Init       InitCmd       `cmd:"" help:"Write a starter pipeline file"`
}

// AfterApply runs after flag parsing; it sets up logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := "info"
	if env := os.Getenv("PIPELIB_LOG_LEVEL"); env != "" {
		level = env
	}
	c.setupLogging(level, c.LogFormat)
	return nil
}

// setupLogging installs the default logger. --verbose always wins.
func (c *CLI) setupLogging(levelName, format string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = slog.LevelInfo
	}
	if c.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// load reads the pipeline file named by --config.
func (c *CLI) load() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if os.Getenv("PIPELIB_LOG_LEVEL") == "" {
		format := c.LogFormat
		if format == "text" {
			format = cfg.Logging.Format
		}
		c.setupLogging(cfg.Logging.Level, format)
	}
	slog.Debug("Loaded pipeline file", slog.String("path", c.Config),
		slog.String("flavor", cfg.Project.Flavor))
	return cfg, nil
}
