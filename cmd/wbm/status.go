package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/workbot/wbm/internal/storage/sqlite"
	"github.com/workbot/wbm/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report which schema changes have been applied (read-only)",
	Run: func(cmd *cobra.Command, _ []string) {
		dir, err := os.Getwd()
		if err != nil {
			FatalError("failed to determine current directory: %v", err)
		}

		path, _, err := resolveDatabasePath(dir)
		if err != nil {
			if jsonOutput {
				outputJSONError(err, "config_load_failed")
			}
			FatalError("%v", err)
		}

		st, err := gatherStatus(rootCtx, path)
		if err != nil {
			if jsonOutput {
				outputJSONError(err, "status_failed")
			}
			FatalError("%v", err)
		}

		if jsonOutput {
			outputJSON(st)
			return
		}
		printStatus(st)
	},
}

// itemStatus is one expected column or index.
type itemStatus struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // "column" or "index"
	Present bool   `json:"present"`
}

// statusReport is the read-only view of how far the schema has been
// migrated, also the --json payload.
type statusReport struct {
	Database      string       `json:"database"`
	Items         []itemStatus `json:"items"`
	Pending       int          `json:"pending"`
	UserCount     int64        `json:"user_count"`
	BackfillsLeft int64        `json:"backfills_left"`
}

// expected schema objects, in plan order.
var (
	expectedColumns = []string{"DisplayName", "ExternalId", "EmployeeId", "AuthenticationMethod"}
	expectedIndexes = []string{"IX_Users_ExternalId", "IX_Users_EmployeeId", "IX_Users_AuthenticationMethod"}
)

// gatherStatus inspects the schema without executing any DDL or DML.
func gatherStatus(ctx context.Context, path string) (*statusReport, error) {
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	db := store.DB()
	hasUsers, err := sqlite.TableExists(ctx, db, "Users")
	if err != nil {
		return nil, err
	}
	if !hasUsers {
		return nil, fmt.Errorf("%q has no Users table: %w", path, sqlite.ErrNoUsersTable)
	}

	st := &statusReport{Database: path}

	for _, col := range expectedColumns {
		present, err := sqlite.ColumnExists(ctx, db, "Users", col)
		if err != nil {
			return nil, err
		}
		st.Items = append(st.Items, itemStatus{Name: col, Kind: "column", Present: present})
		if !present {
			st.Pending++
		}
	}
	for _, idx := range expectedIndexes {
		present, err := sqlite.IndexExists(ctx, db, "Users", idx)
		if err != nil {
			return nil, err
		}
		st.Items = append(st.Items, itemStatus{Name: idx, Kind: "index", Present: present})
		if !present {
			st.Pending++
		}
	}

	st.UserCount, err = sqlite.CountUsers(ctx, db)
	if err != nil {
		return nil, err
	}
	st.BackfillsLeft, err = sqlite.CountUnsetAuthMethods(ctx, db)
	if err != nil {
		return nil, err
	}
	if st.BackfillsLeft > 0 {
		st.Pending++
	}
	return st, nil
}

func printStatus(st *statusReport) {
	fmt.Println(ui.RenderHeader("WorkBot schema status"))
	fmt.Printf("Database: %s\n\n", st.Database)

	for _, item := range st.Items {
		if item.Present {
			fmt.Printf("%s %s %s\n", ui.RenderPass(ui.IconPass), item.Kind, item.Name)
		} else {
			fmt.Printf("%s %s %s %s\n", ui.RenderMuted(ui.IconSkip), item.Kind, item.Name,
				ui.RenderMuted("(pending)"))
		}
	}

	fmt.Printf("\nTotal users: %d\n", st.UserCount)
	if st.BackfillsLeft > 0 {
		fmt.Printf("%s %d user(s) still need AuthenticationMethod backfilled\n",
			ui.RenderWarn(ui.IconWarn), st.BackfillsLeft)
	}

	if st.Pending == 0 {
		fmt.Printf("\n%s Schema is up to date.\n", ui.RenderPass(ui.IconPass))
	} else {
		fmt.Printf("\n%d change(s) pending. Run 'wbm migrate' to apply.\n", st.Pending)
	}
}
