package main

import (
	"github.com/spf13/cobra"

	"starkshield/internal/history"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var refresh, clearAll bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List submitted verifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := newApp(c.cfg, c.logger)
			defer a.close()
			store, err := a.historyStore(cmd.Context())
			if err != nil {
				return err
			}

			if clearAll {
				if err := store.Clear(cmd.Context()); err != nil {
					return err
				}
				return c.out.emit([]history.Entry{}, func() { c.out.ok("history cleared") })
			}

			var entries []history.Entry
			if refresh {
				e := a.enricher(store)
				entries, err = e.Refresh(cmd.Context(), e.Begin())
			} else {
				entries, err = store.List(cmd.Context())
			}
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []history.Entry{}
			}
			return c.out.emit(entries, func() { c.out.entries(entries) })
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Confirm entries against the registry")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all entries")
	cmd.MarkFlagsMutuallyExclusive("refresh", "clear")
	return cmd
}
