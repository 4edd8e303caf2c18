package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/afrietaadmin/uisp-service-suspension/internal/config"
	"github.com/afrietaadmin/uisp-service-suspension/internal/ledger"
)

type rootOptions struct {
	routers string
	ledger  ledger.Options
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "suspendctl",
		Short: "Operator CLI for the UISP suspension service",
		Example: `	suspendctl resolve 100.64.16.50
	suspendctl ranges 100.64.16.21-100.64.17.254
	suspendctl sign --secret "$UISP_APP_KEY" payload.json
	suspendctl ledger get 0b7f2c9e-1a55-4c8e-9a43-5f3c1c2d7e10`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.LoadEnvFile(os.Getenv("UISP_ENV_FILE"), config.DefaultEnvFile, config.LegacyEnvFile)
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.routers, "routers", getenv("NAS_CONFIG_PATH", "/etc/uisp/nas_config.json"),
		"router directory file (or NAS_CONFIG_PATH)")
	pf.StringVar(&opts.ledger.Backend, "ledger-backend", getenv("LEDGER_BACKEND", ledger.BackendSQLite),
		"ledger backend: sqlite, redis or memory (or LEDGER_BACKEND)")
	pf.StringVar(&opts.ledger.SQLitePath, "ledger-path", getenv("LEDGER_SQLITE_PATH", "/var/lib/uisp/ledger.db"),
		"SQLite ledger file (or LEDGER_SQLITE_PATH)")
	pf.StringVar(&opts.ledger.Redis.Addr, "redis-addr", getenv("LEDGER_REDIS_ADDR", "localhost:6379"),
		"Redis address (or LEDGER_REDIS_ADDR)")
	pf.IntVar(&opts.ledger.Redis.DB, "redis-db", getenvInt("LEDGER_REDIS_DB", 0),
		"Redis database (or LEDGER_REDIS_DB)")
	pf.StringVar(&opts.ledger.Redis.Prefix, "redis-prefix", getenv("LEDGER_REDIS_PREFIX", ledger.DefaultRedisPrefix),
		"Redis key prefix (or LEDGER_REDIS_PREFIX)")
	opts.ledger.Redis.Password = os.Getenv("LEDGER_REDIS_PASSWORD")

	root.AddCommand(newResolveCmd(opts))
	root.AddCommand(newRangesCmd())
	root.AddCommand(newSignCmd())
	root.AddCommand(newLedgerCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return v
	}
	return def
}
