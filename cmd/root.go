package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecheck/internal/config"
	"github.com/andresmejia3/facecheck/internal/logging"
	"github.com/andresmejia3/facecheck/internal/store"
)

var (
	// Cfg is the configuration shared by subcommands
	Cfg *config.Config
	// Log is the structured logger shared by subcommands
	Log *logrus.Logger
	// DB is opened lazily by the commands that persist reps
	DB *store.Store

	cfgPath  string
	rootDir  string
	dbURL    string
	logLevel string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "facecheck",
	Short:   "Face recognition pipeline verification and demos",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgPath == "" {
			cfgPath = config.DefaultConfigPath()
		}
		var err error
		Cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		// Flags win over file and environment
		if rootDir != "" {
			Cfg.Root = rootDir
		}
		if logLevel != "" {
			Cfg.LogLevel = logLevel
		}
		if Log, err = logging.New(os.Stderr, Cfg.LogLevel, Cfg.LogFormat); err != nil {
			return err
		}
		Log.WithFields(logrus.Fields{"config": cfgPath, "root": Cfg.Root}).Debug("configuration loaded")
		return nil
	},
}

// openDB connects to PostgreSQL for the commands that need the rep store.
func openDB(ctx context.Context) error {
	if DB != nil {
		return nil
	}

	url := dbURL
	if url == "" {
		url = Cfg.Database
	}
	// If nothing was configured, try to build the connection string from the environment
	if url == "" {
		if host := os.Getenv("POSTGRES_HOST"); host != "" {
			user := os.Getenv("POSTGRES_USER")
			pass := os.Getenv("POSTGRES_PASSWORD")
			name := os.Getenv("POSTGRES_DB")
			port := os.Getenv("POSTGRES_PORT")
			if port == "" {
				port = "5432"
			}
			url = fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
		} else {
			// Fallback to local default if no env vars are present
			url = "postgres://localhost:5432/facecheck"
		}
	}

	var err error
	DB, err = store.New(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

// closeDB releases the connection opened by openDB, if any.
func closeDB() {
	if DB == nil {
		return
	}
	// Use Background here because the main context might be cancelled already (due to Ctrl+C)
	// and we still need to send the "Close" command to the DB.
	DB.Close(context.Background())
	DB = nil
}

// run executes the command tree. cobra skips PersistentPostRun when RunE
// fails, so the DB is closed here on every exit path.
func run(ctx context.Context) error {
	defer closeDB()
	return rootCmd.ExecuteContext(ctx)
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "YAML config file (default: $FACECHECK_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Directory that relative model and image paths are resolved against")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: postgres://localhost:5432/facecheck)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}
