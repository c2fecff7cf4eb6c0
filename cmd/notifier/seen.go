package main

import (
	"errors"
	"fmt"

	"github.com/Adda-Baaj/cine-khobor/internal/app"
	"github.com/Adda-Baaj/cine-khobor/internal/logger"
	"github.com/Adda-Baaj/cine-khobor/internal/storage"
	"github.com/spf13/cobra"
)

func newSeenCmd() *cobra.Command {
	seen := &cobra.Command{
		Use:   "seen",
		Short: "Inspect or seed the seen-item set",
	}

	seen.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Print the number of recorded item ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func(store storage.Store) error {
				n, err := store.Count()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	})

	seen.AddCommand(&cobra.Command{
		Use:   "mark <id>...",
		Short: "Record item ids as seen so they are never notified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store storage.Store) error {
				for _, id := range args {
					if err := store.MarkItem(id); err != nil {
						return fmt.Errorf("mark %q: %w", id, err)
					}
				}
				if err := store.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "marked %d id(s)\n", len(args))
				return nil
			})
		},
	})
	return seen
}

func withStore(fn func(storage.Store) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	store, err := app.OpenStore(cfg, log)
	if err != nil {
		return err
	}
	return errors.Join(fn(store), store.Close())
}
