package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// defaultDatabaseName is where WorkBot keeps its database by convention.
const defaultDatabaseName = "workbot.db"

// configFileName is the optional per-project config file.
const configFileName = ".wbm.yaml"

// fileConfig is the subset of settings the config file may carry. Flags and
// WBM_* environment variables take precedence over it.
type fileConfig struct {
	Database string `yaml:"database"` // database path, relative to the config file
	Backup   bool   `yaml:"backup"`   // always back up before migrating
}

// loadFileConfig reads .wbm.yaml from dir. A missing file is not an error;
// a malformed one is.
func loadFileConfig(dir string) (*fileConfig, error) {
	path := filepath.Join(dir, configFileName)
	data, err := os.ReadFile(path) // #nosec G304 -- path is cwd + fixed name
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", configFileName, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configFileName, err)
	}
	return &cfg, nil
}

// applyViperOverrides lets WBM_* environment variables stand in for flags
// the user did not pass explicitly (WBM_DB, WBM_JSON). Flags always win.
func applyViperOverrides(cmd *cobra.Command) {
	v := viper.New()
	v.SetEnvPrefix("WBM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if !cmd.Flags().Changed("db") {
		if val := v.GetString("db"); val != "" {
			dbPath = val
		}
	}
	if !cmd.Flags().Changed("json") {
		if v.GetBool("json") {
			jsonOutput = true
		}
	}
}

// resolveDatabasePath picks the database path: --db flag (or WBM_DB via
// applyViperOverrides) > .wbm.yaml database key > workbot.db in cwd.
// The fileConfig return is non-nil when a config file was present, so
// callers can honor its other settings.
func resolveDatabasePath(dir string) (string, *fileConfig, error) {
	cfg, err := loadFileConfig(dir)
	if err != nil {
		return "", nil, err
	}

	if dbPath != "" {
		return dbPath, cfg, nil
	}
	if cfg != nil && cfg.Database != "" {
		if filepath.IsAbs(cfg.Database) {
			return cfg.Database, cfg, nil
		}
		return filepath.Join(dir, cfg.Database), cfg, nil
	}
	return filepath.Join(dir, defaultDatabaseName), cfg, nil
}

// listDatabaseFiles returns the .db files in dir, sorted, for the preflight
// hint when the expected database is missing.
func listDatabaseFiles(dir string) []string {
	matches, err := filepath.Glob(filepath.Join(dir, "*.db"))
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names
}
