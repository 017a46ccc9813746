// Command numctl is the operator CLI: vendor catalogs and balances, price
// previews, pricing rules, wallet lookups and top-up decisions.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd(loadEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
