package main

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/Markovian/pkg/corpus"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// the persistent command line arguments
var (
	configPath *string // path to the JSON config file
	logLevel   *string // overrides the configured log level
	profiling  *bool   // write a CPU profile to the working directory
	profiler   interface{ Stop() }
)

// rootCmd is the base command, every subcommand hangs off it.
var rootCmd = &cobra.Command{
	Use:   "markovian",
	Short: "Guess which of two speakers wrote a piece of text",
	Long: `Markovian trains a character-level Markov model on a sample of each of two
speakers and reports which of them more likely produced a query text.

Samples can be given as files or kept in a local corpus database.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if *profiling {
			profiler = profile.Start(profile.ProfilePath("./"), profile.Quiet)
		}
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().StringP("config", "c", "./markovian.json", "path to the JSON config file")
	logLevel = rootCmd.PersistentFlags().String("logLevel", "", "override the configured log level (debug, info, warn, error)")
	profiling = rootCmd.PersistentFlags().Bool("profiling", false, "create a CPU profile in the working directory")
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate)

	// Finalizers also run when a command fails, unlike PersistentPostRun.
	cobra.OnFinalize(func() {
		if profiler != nil {
			profiler.Stop()
		}
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger used by a subcommand.
func setup() (*Config, *slog.Logger, error) {
	config, err := LoadConfig(*configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if *logLevel != "" {
		config.Server.LogLevel = *logLevel
	}
	logger, err := newLogger(os.Stderr, config.Server.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return config, logger, nil
}

// newLogger creates a text logger writing to w at the named level. Command
// output goes to stdout, so logs are kept on stderr.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// openStore opens the corpus database named in config and prepares a store
// on it. The returned function closes both.
func openStore(config *Config, logger *slog.Logger) (*corpus.Store, func(), error) {
	db, err := initDB(config.Server.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	store, err := newStore(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	closer := func() {
		store.Close()
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}
	return store, closer, nil
}

// newStore sets up the corpus schema on db and prepares a store with logger.
func newStore(db *sql.DB, logger *slog.Logger) (*corpus.Store, error) {
	if err := corpus.SetupSchema(db); err != nil {
		return nil, fmt.Errorf("failed to setup corpus schema: %w", err)
	}
	store, err := corpus.NewStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare corpus store: %w", err)
	}
	store.SetLogger(logger)
	return store, nil
}

// ensureDataDir creates the directory holding a file-backed database.
// In-memory and URI sources are left alone.
func ensureDataDir(dataSource string) error {
	path, _, _ := strings.Cut(dataSource, "?")
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// checkRequiredFlags reports every flag marked required that was not set.
func checkRequiredFlags(flags *pflag.FlagSet) error {
	var missing []string
	flags.VisitAll(func(flag *pflag.Flag) {
		annotation, found := flag.Annotations[cobra.BashCompOneRequiredFlag]
		if found && len(annotation) > 0 && annotation[0] == "true" && !flag.Changed {
			missing = append(missing, "--"+flag.Name)
		}
	})
	if len(missing) > 0 {
		return fmt.Errorf("required flag(s) %s not set", strings.Join(missing, ", "))
	}
	return nil
}
