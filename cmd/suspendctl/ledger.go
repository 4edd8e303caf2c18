package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/afrietaadmin/uisp-service-suspension/internal/ledger"
)

func newLedgerCmd(opts *rootOptions) *cobra.Command {
	c := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the idempotency ledger",
	}
	c.AddCommand(&cobra.Command{
		Use:   "get <uuid>",
		Short: "Print the ledger entry for a webhook uuid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ledger.Open(cmd.Context(), opts.ledger)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Lookup(cmd.Context(), args[0])
			if errors.Is(err, ledger.ErrNotFound) {
				return fmt.Errorf("no ledger entry for %s", args[0])
			}
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	})
	return c
}
