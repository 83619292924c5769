package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version information set via ldflags at build time
var (
	Version   = "dev"
	BuildTime = ""
	GitCommit = ""
)

var rootCmd = &cobra.Command{
	Use:   "routinecat",
	Short: "Browse DB2 stored procedures and functions from catalog snapshots",
	Long: `routinecat maps SYSCAT.ROUTINES and SYSCAT.ROUTINEPARMS rows into typed
routine descriptors and serves them from the command line or over HTTP.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("routinecat version {{.Version}}\n")

	addPersistentFlags(rootCmd.PersistentFlags())
}

func addPersistentFlags(pf *pflag.FlagSet) {
	pf.String("config", "", "YAML config file (env: ROUTINECAT_CONFIG)")
	pf.String("db", "", "Catalog snapshot path or DSN (default: catalog.db)")
	pf.String("driver", "", "Database driver: sqlite, pgx or postgres (default: sqlite)")
	pf.String("version-override", "", "Treat the catalog as this server version, e.g. 9.7")
	pf.Bool("lenient", false, "Map unknown catalog literals to Unknown instead of failing the row")
	pf.Int("workers", 0, "Goroutines mapping rows per scan (default: 8)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.String("log-mode", "", "Log backend: console, file or database")
	pf.String("otel-exporter", "", "Telemetry exporter: none, stdout or otlp")
	pf.String("otel-endpoint", "", "OTLP collector endpoint")
	pf.StringP("output", "o", "auto", "Output format: auto, table or json")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
