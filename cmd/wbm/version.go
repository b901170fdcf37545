package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version is the current version of wbm (overridden by ldflags at build time)
	Version = "1.2.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			outputJSON(map[string]string{
				"version": Version,
				"build":   Build,
			})
		} else {
			fmt.Printf("wbm version %s (%s)\n", Version, Build)
		}
	},
}
