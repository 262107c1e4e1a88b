package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/kgvault/internal/backup"
	"github.com/rohankatakam/kgvault/internal/catalog"
	"github.com/rohankatakam/kgvault/internal/config"
	"github.com/rohankatakam/kgvault/internal/errors"
	"github.com/rohankatakam/kgvault/internal/graph"
	"github.com/rohankatakam/kgvault/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logFile string
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprint(os.Stderr, formatError(err))
	}
	_ = logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

// formatError renders a command failure for the terminal. Debug logging
// switches to the full error context.
func formatError(err error) string {
	var e *errors.Error
	if logging.IsDebugEnabled() && stderrors.As(err, &e) {
		return e.DetailedString()
	}

	prefix := "Error"
	if errors.IsFatal(err) {
		prefix = "Fatal error"
	}
	msg := fmt.Sprintf("%s: %v\n", prefix, err)
	if errors.GetSeverity(err) >= errors.SeverityHigh {
		if path := logging.GetLogFilePath(); path != "" {
			msg += fmt.Sprintf("See %s for details\n", path)
		} else {
			msg += "Run with --verbose for details\n"
		}
	}
	return msg
}

var rootCmd = &cobra.Command{
	Use:   "kgvault",
	Short: "kgvault - backup and restore for Neo4j knowledge graphs",
	Long: `kgvault captures a Neo4j knowledge graph into portable JSON snapshots,
decides when a new backup is worth taking, and restores snapshots either by
replacing the graph or by merging into it while preserving chosen labels.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}

		return initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .kgvault/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write structured logs to this file")

	rootCmd.SetVersionTemplate(`kgvault {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(credentialsCmd)
}

// initLogging installs the slog handler used by the library packages
func initLogging() error {
	logCfg := logging.DefaultConfig(verbose, cfg.Logging.Directory)
	if !verbose {
		logCfg.Level = logging.ParseLevel(cfg.Logging.Level)
		if logCfg.Level == logging.INFO {
			// library progress logs stay quiet unless asked for
			logCfg.Level = logging.WARN
		}
	}
	if logFile != "" {
		logCfg.OutputFile = logFile
	}
	if cfg.Logging.JSON {
		logCfg.JSONFormat = true
	}
	return logging.Initialize(logCfg)
}

// openManager connects to Neo4j and builds a backup manager. The returned
// cleanup closes the catalog and the driver.
func openManager(ctx context.Context) (*backup.Manager, func(), error) {
	mode := cfg.DeploymentMode()
	if cfg.Neo4j.Password == "" {
		password, err := config.NewCredentialManager(mode).GetNeo4jPassword()
		if err != nil {
			return nil, nil, err
		}
		cfg.Neo4j.Password = password
	}

	result := cfg.ValidateWithMode(config.ValidationContextBackup, mode)
	if result.HasErrors() {
		return nil, nil, fmt.Errorf("%s", result.Error())
	}
	for _, warn := range result.Warnings {
		logger.Warn(warn)
	}

	client, err := graph.NewClient(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database, cfg.ClientOptions())
	if err != nil {
		return nil, nil, err
	}

	cat := openCatalog()
	mgr := backup.NewManager(graph.NewNeo4jStore(client), cfg.ManagerConfig(), cat)
	cleanup := func() {
		if err := cat.Close(); err != nil {
			logger.WithError(err).Debug("Failed to close catalog")
		}
		if err := client.Close(context.Background()); err != nil {
			logger.WithError(err).Debug("Failed to close Neo4j driver")
		}
	}
	return mgr, cleanup, nil
}

// openOfflineManager builds a manager for commands that only read the
// backup directory and catalog
func openOfflineManager() (*backup.Manager, func()) {
	cat := openCatalog()
	mgr := backup.NewManager(nil, cfg.ManagerConfig(), cat)
	return mgr, func() {
		if err := cat.Close(); err != nil {
			logger.WithError(err).Debug("Failed to close catalog")
		}
	}
}

// openCatalog opens the history catalog; history is optional, so failures
// only disable it
func openCatalog() *catalog.Catalog {
	if err := os.MkdirAll(cfg.Backup.Directory, 0755); err != nil {
		logger.WithError(err).Warn("Cannot create backup directory, history disabled")
		return nil
	}
	cat, err := catalog.Open(filepath.Join(cfg.Backup.Directory, catalog.FileName))
	if err != nil {
		logger.WithError(err).Warn("Failed to open backup history, continuing without it")
		return nil
	}
	return cat
}

// resolveBackupPath accepts either a path or a bare file name inside the
// backup directory
func resolveBackupPath(arg string) string {
	if arg == "" {
		return ""
	}
	if _, err := os.Stat(arg); err == nil {
		return arg
	}
	if filepath.Base(arg) == arg {
		return filepath.Join(cfg.Backup.Directory, arg)
	}
	return arg
}
