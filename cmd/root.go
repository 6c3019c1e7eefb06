package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/bugs/internal/client"
	"github.com/joescharf/bugs/internal/output"
	"github.com/joescharf/bugs/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "bugs",
	Short: "Bug tracker - report, list, edit and resolve bugs",
	Long: `bugs is a minimal bug tracker.
It runs a small REST API backed by an embedded store, and talks to that API
from the command line, an interactive terminal UI, or an MCP client.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/bugs/config.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "Bug server URL (default http://localhost:5000)")
	_ = viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api-url"))
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BUGS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key's default, rooted at dir.
func setDefaults(dir string) {
	viper.SetDefault("state_dir", dir)
	viper.SetDefault("db_path", filepath.Join(dir, "bugs.db"))
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.badger_dir", filepath.Join(dir, "badger"))
	viper.SetDefault("server.port", 5000)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("api.url", "http://localhost:5000")
	viper.SetDefault("api.timeout", "10s")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// The store is opened lazily so that client-side commands never
	// touch the database.
}

// getStore returns the shared store, initializing it on first call.
func getStore(ctx context.Context) (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	var (
		s   store.Store
		err error
	)
	switch driver := viper.GetString("store.driver"); driver {
	case "sqlite", "":
		s, err = store.NewSQLiteStore(viper.GetString("db_path"))
	case "badger":
		s, err = store.NewBadgerStore(store.BadgerConfig{
			Dir:    viper.GetString("store.badger_dir"),
			Logger: newLogger(os.Stderr).With("component", "badger"),
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q (want sqlite or badger)", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// closeStore closes the shared store if it was opened.
func closeStore() {
	if dataStore != nil {
		_ = dataStore.Close()
		dataStore = nil
	}
}

// newClient returns an API client configured from api.url and api.timeout.
func newClient() *client.Client {
	c := client.New(viper.GetString("api.url"))
	return c.WithTimeout(viper.GetDuration("api.timeout"))
}

// newLogger builds a slog logger from log.level and log.format.
func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(viper.GetString("log.format"), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
