package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/term"

	"github.com/workbot/wbm/internal/storage/sqlite"
	"github.com/workbot/wbm/internal/storage/sqlite/migrations"
	"github.com/workbot/wbm/internal/telemetry"
	"github.com/workbot/wbm/internal/ui"
)

const sampleLimit = 5

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the identity-server schema changes to the Users table",
	Long: `Applies the fixed, ordered list of identity-server schema changes:

  1-4  add DisplayName, ExternalId, EmployeeId, AuthenticationMethod columns
  5-7  create lookup indexes on the three identifier columns
  8    backfill AuthenticationMethod = 'Local' for existing users

Steps whose work is already done are skipped, so re-running after a partial
or completed migration is safe. Any other database error aborts the run.`,
	Run: func(cmd *cobra.Command, _ []string) {
		autoYes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		backup, _ := cmd.Flags().GetBool("backup")

		dir, err := os.Getwd()
		if err != nil {
			FatalError("failed to determine current directory: %v", err)
		}

		path, cfg, err := resolveDatabasePath(dir)
		if err != nil {
			if jsonOutput {
				outputJSONError(err, "config_load_failed")
			}
			FatalError("%v", err)
		}
		if cfg != nil && cfg.Backup {
			backup = true
		}

		if !jsonOutput {
			printMigrateHeader(dir)
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			if jsonOutput {
				outputJSONError(fmt.Errorf("database file %q not found", path), "database_not_found")
			}
			FatalErrorWithHint(
				fmt.Sprintf("database file %q not found", path),
				"run wbm from your WorkBot project directory, or pass --db")
		}

		if dryRun {
			runDryRun(path)
			return
		}

		if !autoYes && !confirmMigration(path) {
			fmt.Println("Migration cancelled.")
			return
		}

		report, err := runMigration(rootCtx, migrateOptions{path: path, backup: backup}, migrateReporter())
		if err != nil {
			if jsonOutput {
				outputJSONError(err, "migration_failed")
			}
			FatalError("%v", err)
		}

		if jsonOutput {
			outputJSON(report)
			return
		}
		printVerification(report)
	},
}

func init() {
	migrateCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	migrateCmd.Flags().Bool("dry-run", false, "print the migration plan without touching the database")
	migrateCmd.Flags().Bool("backup", false, "copy the database file aside before migrating")
}

type migrateOptions struct {
	path   string
	backup bool
}

// stepReport is one line of the run summary.
type stepReport struct {
	Step    int    `json:"step"`
	Name    string `json:"name"`
	Summary string `json:"summary"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
}

// verification is the post-run state of the Users table.
type verification struct {
	Columns   []sqlite.Column     `json:"columns"`
	Indexes   []string            `json:"indexes"`
	UserCount int64               `json:"user_count"`
	Samples   []sqlite.UserSample `json:"samples,omitempty"`
}

// migrationReport is the full result, also the --json payload.
type migrationReport struct {
	Database     string        `json:"database"`
	Backup       string        `json:"backup,omitempty"`
	Steps        []stepReport  `json:"steps"`
	Verification *verification `json:"verification,omitempty"`
}

// printMigrateHeader mirrors what an operator needs before saying yes:
// where we are and which .db files are candidates.
func printMigrateHeader(dir string) {
	fmt.Println(ui.RenderHeader("WorkBot Database Migration"))
	fmt.Println(ui.Separator)
	fmt.Printf("Current directory: %s\n", dir)
	if files := listDatabaseFiles(dir); len(files) > 0 {
		fmt.Printf("Found database files: %s\n", ui.RenderMuted(strings.Join(files, ", ")))
	} else {
		fmt.Println(ui.RenderWarn("No .db files found in current directory."))
	}
	fmt.Println()
}

// runDryRun prints the ordered plan and exits without opening the database
// for writing.
func runDryRun(path string) {
	steps := migrations.Steps()
	if jsonOutput {
		plan := make([]map[string]string, 0, len(steps))
		for _, s := range steps {
			plan = append(plan, map[string]string{"name": s.Name, "summary": s.Summary, "sql": s.SQL})
		}
		outputJSON(map[string]interface{}{"dry_run": true, "database": path, "plan": plan})
		return
	}
	fmt.Println("Dry run mode - no changes will be made")
	fmt.Printf("Would apply %d step(s) to %s:\n\n", len(steps), path)
	for i, s := range steps {
		fmt.Printf("  %d. %s\n", i+1, s.SQL)
	}
}

// confirmMigration asks for a yes/no. On a terminal this is a huh form;
// when stdin is piped the prompt cannot be answered, so the run aborts with
// a hint to pass --yes.
func confirmMigration(path string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		FatalErrorWithHint("refusing to migrate without confirmation on non-interactive stdin",
			"pass --yes to skip the prompt")
	}

	var proceed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Migrate %s?", path)).
				Description("Adds identity-server columns and indexes to the Users table.").
				Affirmative("Migrate").
				Negative("Cancel").
				Value(&proceed),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false
		}
		FatalError("confirmation prompt failed: %v", err)
	}
	return proceed
}

// migrateReporter prints one styled line per step in text mode. In JSON
// mode nothing is printed; the collected report carries the same data.
func migrateReporter() migrations.StepObserver {
	if jsonOutput {
		return nil
	}
	return func(n, total int, step migrations.Step, res migrations.Result, err error) {
		switch {
		case err != nil:
			fmt.Printf("%s Step %d/%d: %s: %v\n", ui.RenderFail(ui.IconFail), n, total, step.Summary, err)
		case res.Status == migrations.StatusSkipped:
			fmt.Printf("%s Step %d/%d: %s %s\n", ui.RenderWarn(ui.IconWarn), n, total, step.Summary,
				ui.RenderMuted("("+res.Detail+")"))
		default:
			line := fmt.Sprintf("%s Step %d/%d: %s", ui.RenderPass(ui.IconPass), n, total, step.Summary)
			if res.Detail != "" {
				line += " " + ui.RenderMuted("("+res.Detail+")")
			}
			fmt.Println(line)
		}
	}
}

// runMigration opens the database, applies the plan, and gathers the
// verification summary. onStep (may be nil) sees each step as it finishes.
func runMigration(ctx context.Context, opts migrateOptions, onStep migrations.StepObserver) (*migrationReport, error) {
	tracer := telemetry.Tracer("")
	ctx, span := tracer.Start(ctx, "wbm.migrate",
		trace.WithAttributes(attribute.String("db.path", opts.path)))
	defer span.End()

	stepCounter, _ := telemetry.Meter("").Int64Counter("wbm.migrate.steps",
		metric.WithDescription("Migration steps by outcome"))

	report := &migrationReport{Database: opts.path}

	if opts.backup {
		backupPath, err := sqlite.BackupFile(opts.path)
		if err != nil {
			return nil, err
		}
		report.Backup = backupPath
	}

	store, err := sqlite.Open(ctx, opts.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	db := store.DB()

	// A database without a Users table is not a WorkBot database; failing
	// here beats failing on step 1 with a bare "no such table".
	hasUsers, err := sqlite.TableExists(ctx, db, "Users")
	if err != nil {
		return nil, err
	}
	if !hasUsers {
		return nil, fmt.Errorf("%q has no Users table: %w", opts.path, sqlite.ErrNoUsersTable)
	}

	runErr := migrations.Run(ctx, db, func(n, total int, step migrations.Step, res migrations.Result, err error) {
		span.AddEvent(step.Name)
		status := string(res.Status)
		detail := res.Detail
		if err != nil {
			status = "failed"
			detail = err.Error()
		}
		if stepCounter != nil {
			stepCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
		}
		report.Steps = append(report.Steps, stepReport{
			Step: n, Name: step.Name, Summary: step.Summary,
			Status: status, Detail: detail,
		})
		if onStep != nil {
			onStep(n, total, step, res, err)
		}
	})
	if runErr != nil {
		span.RecordError(runErr)
		return nil, runErr
	}

	v, err := gatherVerification(ctx, db)
	if err != nil {
		return nil, err
	}
	report.Verification = v
	return report, nil
}

// gatherVerification reads back the Users schema and a data spot check,
// mirroring what the original runbook asked operators to eyeball.
func gatherVerification(ctx context.Context, db *sql.DB) (*verification, error) {
	cols, err := sqlite.TableColumns(ctx, db, "Users")
	if err != nil {
		return nil, err
	}
	indexes, err := sqlite.TableIndexes(ctx, db, "Users")
	if err != nil {
		return nil, err
	}
	count, err := sqlite.CountUsers(ctx, db)
	if err != nil {
		return nil, err
	}

	v := &verification{Columns: cols, Indexes: indexes, UserCount: count}
	if count > 0 {
		samples, err := sqlite.SampleUsers(ctx, db, sampleLimit)
		if err != nil {
			return nil, err
		}
		v.Samples = samples
	}
	return v, nil
}

// printVerification renders the post-run summary in text mode.
func printVerification(report *migrationReport) {
	fmt.Println()
	fmt.Printf("%s All migration steps completed successfully!\n", ui.RenderPass(ui.IconPass))
	if report.Backup != "" {
		fmt.Printf("Backup written to %s\n", ui.RenderMuted(report.Backup))
	}

	v := report.Verification
	if v == nil {
		return
	}

	fmt.Println()
	fmt.Println(ui.Separator)
	fmt.Println(ui.RenderHeader("Updated Users table structure:"))
	for _, col := range v.Columns {
		line := fmt.Sprintf("  - %s (%s)", col.Name, col.Type)
		fmt.Println(line)
	}

	fmt.Println()
	fmt.Println(ui.RenderHeader("Indexes:"))
	for _, name := range v.Indexes {
		fmt.Printf("  - %s\n", name)
	}

	fmt.Printf("\nTotal users in database: %d\n", v.UserCount)
	if len(v.Samples) > 0 {
		fmt.Println("\nSample user authentication methods:")
		for _, s := range v.Samples {
			fmt.Printf("  - %s: %s\n", s.Username, s.AuthenticationMethod)
		}
	}
}
