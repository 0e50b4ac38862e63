package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Branch string `arg:"" optional:"" help:"Only runs on this branch"`
	Limit  int    `short:"n" help:"Number of runs to show" default:"20"`
	JSON   bool   `help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	store, err := eventstore.NewSQLiteStore(cfg.Events.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := eventstore.History(context.Background(), store, h.Branch, h.Limit)
	if err != nil {
		return err
	}
	if h.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tBRANCH\tVERSION\tRESULT\tDURATION\tFAILED\tRUN")
	for _, r := range runs {
		duration := "-"
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Branch, r.Version, r.Result,
			duration, r.FailedStage, r.RunID)
	}
	return tw.Flush()
}
