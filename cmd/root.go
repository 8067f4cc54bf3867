package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dialsight/dialsight/internal/config"
	"github.com/dialsight/dialsight/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Options holds shared configuration for the scan, replay, and watch commands
type Options struct {
	InputPath      string
	NthFrame       int
	NumEngines     int
	Window         string
	WindowFrames   int64
	StableHits     int64
	Languages      []string
	TranscriptPath string
	NoStore        bool
}

var (
	// DB is the global database connection shared by subcommands
	DB *store.Store
	// Cfg is the loaded configuration, shared by subcommands
	Cfg *config.Manager
	// dbURL is the connection string
	dbURL string
	// cfgFile is an explicit config file path from --config
	cfgFile string
)

// Version is the application version.
const Version = "0.0.1"

var rootCmd = &cobra.Command{
	Use:     "dialsight",
	Short:   "On-Screen Phone Number Extraction & Tracking Engine",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		Cfg, err = config.NewManager(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		// Commands that never touch the database opt out of the connection,
		// as does anything running with --no-store.
		if cmd.Annotations["skipDB"] == "true" || opts.NoStore {
			return nil
		}

		// Resolution order: --db flag, config file, POSTGRES_* environment,
		// then the local default.
		if dbURL == "" {
			dbURL = Cfg.Get().DatabaseURL()
		}
		if dbURL == "" {
			if host := os.Getenv("POSTGRES_HOST"); host != "" {
				user := os.Getenv("POSTGRES_USER")
				pass := os.Getenv("POSTGRES_PASSWORD")
				name := os.Getenv("POSTGRES_DB")
				port := os.Getenv("POSTGRES_PORT")
				if port == "" {
					port = "5432"
				}
				dbURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
			} else {
				// Fallback to local default if no env vars are present
				dbURL = "postgres://localhost:5432/dialsight"
			}
		}

		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
	},
}

func Execute() {
	// A .env next to the binary can supply POSTGRES_* and DIALSIGHT_* variables.
	_ = godotenv.Load()

	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: postgres://localhost:5432/dialsight)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./dialsight.yaml, then ~/.dialsight/dialsight.yaml)")
}
