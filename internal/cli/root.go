// Package cli implements the journal command line tool.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"statebind/pkg/journal"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string

	// Open returns the journal to inspect and a function releasing it.
	Open func(ctx context.Context) (journal.Store, func(), error)
}

// NewRootCommand creates the root command. A nil open uses journal.Connect,
// so the commands fail when DATABASE_URL is unset rather than inspect an
// empty in-memory journal.
func NewRootCommand(open func(ctx context.Context) (journal.Store, func(), error)) *cobra.Command {
	if open == nil {
		open = journal.Connect
	}
	opts := &RootOptions{Open: open}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the action journal",
		Long:  "Lists, counts and verifies the hash-chained journal of applied store actions.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newCountCommand(opts))
	cmd.AddCommand(newVerifyCommand(opts))

	return cmd
}

func withJournal(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, j journal.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	j, release, err := opts.Open(ctx)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer release()
	return fn(ctx, j)
}
