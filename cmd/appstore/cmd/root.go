package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/msto63/appstore/internal/tui/store"
	"github.com/msto63/appstore/pkg/core/config"
	"github.com/msto63/appstore/pkg/core/logging"
)

var (
	cfgFile string
	verbose bool

	cfg     *config.Config
	logFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "appstore",
	Short: "Terminal App Store for Python applications",
	Long: `appstore browses a catalog of Python applications and installs,
uninstalls and runs them through pip and the Python interpreter.

Without a subcommand the interactive store is started.

Keyboard shortcuts:
  j/k      Navigation
  i        Install the selected application
  u        Uninstall the selected application
  r        Run the selected application
  c        Clear the log
  ?        Show help
  q        Quit`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
	RunE:              runStore,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $APPSTORE_CONFIG or ./configs/appstore.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

// setup loads the configuration and sends diagnostics to the log file
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	lc := logging.DefaultLoggerConfig("appstore")
	lc.Level = cfg.General.LogLevel
	lc.Format = "console"
	if verbose {
		lc.Level = "debug"
	}

	// The terminal belongs to the UI, so logs never go to stderr
	lc.Output = io.Discard
	if cfg.General.LogFile != "" {
		f, err := logging.OpenLogFile(cfg.General.LogFile)
		if err != nil {
			printError("log file unavailable", err)
		} else {
			logFile = f
			lc.Output = f
		}
	}
	logging.Configure(lc)
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if logFile != nil {
		logFile.Close()
	}
}

func runStore(cmd *cobra.Command, args []string) error {
	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	runErr := store.Run(store.Config{
		Title:        cfg.General.Name,
		Catalog:      app.catalog,
		Ops:          app.orch,
		Queue:        app.queue,
		Checker:      app.checker(),
		StorePackage: cfg.Store.Package,
		PollInterval: cfg.UI.PollInterval.Duration,
		MaxLogLines:  cfg.UI.MaxLogLines,
	})

	app.Shutdown()
	return runErr
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}
