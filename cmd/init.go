package cmd

import (
	"fmt"
	"os"

	"github.com/markb/routinecat/internal/catalog"
	"github.com/markb/routinecat/internal/db"
	"github.com/markb/routinecat/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new catalog snapshot",
	Long: `Creates a SQLite database with the SYSCAT tables routinecat reads.
With --sample the snapshot is filled with a small demo catalog.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Driver != db.DriverSQLite {
			return fmt.Errorf("init only creates SQLite snapshots, got driver %q", cfg.Driver)
		}
		sample, _ := cmd.Flags().GetBool("sample")
		rawVersion, _ := cmd.Flags().GetString("server-version")

		version := store.SampleVersion
		if rawVersion != "" {
			if version, err = catalog.ParseVersion(rawVersion); err != nil {
				return err
			}
		}

		if _, err := os.Stat(cfg.DSN); err == nil {
			return fmt.Errorf("catalog already exists at %s", cfg.DSN)
		}

		database, err := db.New(cfg.DSN)
		if err != nil {
			return fmt.Errorf("failed to create catalog: %w", err)
		}
		defer database.Close()

		if err := database.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		st := store.New(database)
		if sample {
			if err := st.SeedSample(cmd.Context()); err != nil {
				return err
			}
		}
		if err := st.SetVersion(cmd.Context(), version); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if sample {
			fmt.Fprintf(out, "Initialized sample catalog at %s (server version %s)\n", cfg.DSN, version)
		} else {
			fmt.Fprintf(out, "Initialized catalog at %s (server version %s)\n", cfg.DSN, version)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("sample", false, "Load the demo catalog")
	initCmd.Flags().String("server-version", "", "DB2 server version recorded in the snapshot (default: 11.5)")
}
