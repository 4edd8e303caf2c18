package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/afrietaadmin/uisp-service-suspension/internal/api"
)

func newSignCmd() *cobra.Command {
	var secret string
	c := &cobra.Command{
		Use:   "sign <file|->",
		Short: "Print the webhook signature header value for a payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("UISP_APP_KEY")
			}
			if secret == "" {
				return errors.New("no secret: pass --secret or set UISP_APP_KEY")
			}
			var (
				body []byte
				err  error
			)
			if args[0] == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), api.Sign(body, secret))
			return nil
		},
	}
	c.Flags().StringVar(&secret, "secret", "", "HMAC secret (default UISP_APP_KEY)")
	return c
}
