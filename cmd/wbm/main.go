// wbm applies the WorkBot identity-server schema changes to a local
// workbot.db file: four new Users columns, three lookup indexes, and a
// backfill of AuthenticationMethod.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/workbot/wbm/internal/telemetry"
	"github.com/workbot/wbm/internal/ui"
)

var (
	dbPath     string
	jsonOutput bool

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "wbm",
	Short: "wbm - WorkBot database migration tool",
	Long: `Applies the identity-server schema changes to a WorkBot database:
DisplayName, ExternalId, EmployeeId and AuthenticationMethod columns on the
Users table, lookup indexes for each identifier, and a backfill that stamps
existing users as 'Local' accounts.

The run is idempotent: steps that find their work already done are skipped.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("wbm version %s (%s)\n", Version, Build)
			return
		}
		// No subcommand - show help
		_ = cmd.Help() // Help() always returns nil for cobra commands
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Init()
		setupSignalContext()
		applyViperOverrides(cmd)

		if err := telemetry.Init(rootCtx, "wbm", Version); err != nil {
			WarnError("telemetry init failed: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)

		if rootCancel != nil {
			rootCancel()
		}
	},
}

// setupSignalContext installs a context cancelled by SIGINT/SIGTERM so a
// Ctrl-C between steps stops the run before the next statement.
func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the WorkBot database (default: workbot.db)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.Flags().Bool("version", false, "print version information")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
