// setup_db.go implements "bankctl setup-db", which creates and seeds the
// local database.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bank-assistant/internal/config"
	"bank-assistant/internal/repository"
)

var setupDBCmd = &cobra.Command{
	Use:   "setup-db",
	Short: "Create the SQLite schema and seed demo customers",
	Long: `Create the SQLite schema at the configured database path and insert the
demo customers, accounts and transactions. Existing rows are kept, so the
command is safe to re-run. With --write-config a default config file is
written when none exists.`,
	RunE: runSetupDB,
}

var writeConfigFlag bool

func init() {
	setupDBCmd.Flags().BoolVar(&writeConfigFlag, "write-config", false, "Write a default config file if none exists")
}

func runSetupDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if writeConfigFlag {
		if _, statErr := os.Stat(configPath); errors.Is(statErr, fs.ErrNotExist) {
			if err := config.WriteConfig(configPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
		}
	}

	store, err := repository.NewSQLiteStore(cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Seed(cmd.Context(), time.Now()); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Database ready at %s\n", cfg.Database)
	return nil
}
