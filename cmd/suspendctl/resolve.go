package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/afrietaadmin/uisp-service-suspension/internal/config"
)

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var showWarnings bool
	c := &cobra.Command{
		Use:   "resolve <ip>...",
		Short: "Show which router owns each address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.LoadDirectory(opts.routers, nil)
			if err != nil {
				return err
			}
			if showWarnings {
				for _, w := range dir.Warnings() {
					cmd.PrintErrln("warning:", w)
				}
			}
			for _, ip := range args {
				site, r, ok := dir.Resolve(ip)
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ip, site)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", ip, site, r.Name, r.Endpoint)
			}
			return nil
		},
	}
	c.Flags().BoolVar(&showWarnings, "warnings", true, "print directory quality warnings to stderr")
	return c
}
