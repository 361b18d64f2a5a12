package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"webmpipe/internal/history"
	"webmpipe/internal/naming"
)

type historyJSON struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Output      string `json:"output,omitempty"`
	Status      string `json:"status"`
	FailedKey   string `json:"failed_key,omitempty"`
	Message     string `json:"message,omitempty"`
	Threads     int    `json:"threads"`
	Audio       bool   `json:"audio"`
	Options     string `json:"options"`
	OutputBytes int64  `json:"output_bytes"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at"`
}

func toHistoryJSON(e history.Entry) historyJSON {
	return historyJSON{
		ID:          e.ID,
		Source:      e.Source,
		Output:      e.Output,
		Status:      e.Status,
		FailedKey:   e.FailedKey,
		Message:     e.Message,
		Threads:     e.Threads,
		Audio:       e.Audio,
		Options:     e.Options,
		OutputBytes: e.OutputBytes,
		StartedAt:   e.StartedAt.Format(time.RFC3339),
		FinishedAt:  e.FinishedAt.Format(time.RFC3339),
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List finished runs, or show one run in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("history is disabled in the configuration")
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				entry, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, toHistoryJSON(entry))
				}
				printHistoryDetail(cmd, entry)
				return nil
			}

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				items := make([]historyJSON, 0, len(entries))
				for _, e := range entries {
					items = append(items, toHistoryJSON(e))
				}
				return writeJSON(cmd, items)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderHistoryTable(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := naming.FormatSize(e.OutputBytes)
		if e.Status == history.StatusFailed {
			result = "at " + e.FailedKey
		} else if e.Status == history.StatusCancelled {
			result = "-"
		}
		rows = append(rows, []string{
			shortID(e.ID),
			e.FinishedAt.Local().Format("2006-01-02 15:04"),
			e.Status,
			e.Source,
			naming.FormatDuration(e.Elapsed()),
			result,
		})
	}
	return renderTable(
		[]string{"ID", "Finished", "Status", "Source", "Elapsed", "Result"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

func printHistoryDetail(cmd *cobra.Command, e history.Entry) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", e.ID)
	fmt.Fprintf(out, "Status:   %s\n", e.Status)
	fmt.Fprintf(out, "Source:   %s\n", e.Source)
	if e.Output != "" {
		fmt.Fprintf(out, "Output:   %s (%s bytes)\n", e.Output, naming.FormatBytes(e.OutputBytes))
	}
	if e.FailedKey != "" {
		fmt.Fprintf(out, "Failed:   %s: %s\n", e.FailedKey, e.Message)
	}
	fmt.Fprintf(out, "Threads:  %d\n", e.Threads)
	fmt.Fprintf(out, "Audio:    %s\n", yesNo(e.Audio))
	fmt.Fprintf(out, "Options:  %s\n", e.Options)
	fmt.Fprintf(out, "Elapsed:  %s\n", naming.FormatDuration(e.Elapsed()))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
