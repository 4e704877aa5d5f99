package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teemow/listunsub/internal/store"
)

func newHistoryCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the mailing lists unsubscribed so far",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}

			st, err := store.Open(cmd.Context(), cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer st.Close()

			targets, err := st.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTARGET")
			for _, t := range targets {
				fmt.Fprintf(w, "%d\t%s\n", t.ID, t.MailtoLink)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			n, err := st.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\n", n)
			return nil
		},
	}
}
