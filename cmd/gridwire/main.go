package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridwire",
		Short: "Wire protocol tooling for the data grid client protocol",
		Long: `gridwire works with the binary client protocol of the data grid:
a 14-byte little-endian frame header, length-prefixed variable data,
and BEGIN/END fragmentation of oversized logical messages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		inspectCmd(),
		splitCmd(),
		echoCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
