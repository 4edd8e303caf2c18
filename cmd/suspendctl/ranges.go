package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/afrietaadmin/uisp-service-suspension/internal/directory"
)

func newRangesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ranges <dhcp_range>...",
		Short: "Preview how dhcp_range values convert to networks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range args {
				p, warning, err := directory.ParseNetwork(raw)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\terror: %v\n", raw, err)
					continue
				}
				if warning != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\twarning: %s\n", raw, p, warning)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", raw, p)
			}
			return nil
		},
	}
}
