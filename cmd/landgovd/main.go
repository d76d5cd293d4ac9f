package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "landgovd",
		Short: "Governance engine for the land registry platform",
		Long: "landgovd runs the governance proposal engine: it registers proposals on the " +
			"external ledger, records confirmed votes, determines outcomes and drives the " +
			"timelock lifecycle, while serving a local query API over its own database.",
	}
	rootCmd.PersistentFlags().String(flagHome, defaultHome(), "node home directory")

	InitRootCmd(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
