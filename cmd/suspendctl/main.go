// Command suspendctl is the operator tool for the suspension service: it
// previews router resolution and range conversion, signs payloads for manual
// replay and inspects the idempotency ledger.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
