package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"statebind/pkg/journal"
)

func newListCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, opts, func(ctx context.Context, j journal.Store) error {
				entries, err := j.Recent(ctx, limit)
				if err != nil {
					return fmt.Errorf("list entries: %w", err)
				}
				out := cmd.OutOrStdout()
				if opts.Format == "json" {
					if entries == nil {
						entries = []journal.Entry{}
					}
					return printJSON(out, entries)
				}
				for _, e := range entries {
					fmt.Fprintf(out, "%s  %-12s %-8s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, shortID(e.ID), e.Payload)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return cmd
}

func newCountCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, opts, func(ctx context.Context, j journal.Store) error {
				n, err := j.Count(ctx)
				if err != nil {
					return fmt.Errorf("count entries: %w", err)
				}
				if opts.Format == "json" {
					return printJSON(cmd.OutOrStdout(), map[string]int{"count": n})
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newVerifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the hash chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, opts, func(ctx context.Context, j journal.Store) error {
				if err := j.VerifyChain(ctx); err != nil {
					return err
				}
				if opts.Format == "json" {
					return printJSON(cmd.OutOrStdout(), map[string]bool{"ok": true})
				}
				fmt.Fprintln(cmd.OutOrStdout(), "chain ok")
				return nil
			})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
