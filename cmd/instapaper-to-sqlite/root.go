package main

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ipsqlite/instapaper-to-sqlite/internal/credentials"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/instapaper"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/store"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/sync"
)

var rootCmd = &cobra.Command{
	Use:   "instapaper-to-sqlite",
	Short: "Save data from Instapaper to a SQLite database",
	Long: `Export Instapaper folders and bookmarks into a local SQLite database.

Typical use:
  instapaper-to-sqlite auth
  instapaper-to-sqlite folders instapaper.db
  instapaper-to-sqlite bookmarks instapaper.db

Every run upserts by primary key, so commands can be repeated safely.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

var (
	// cfg holds flag, environment and config file settings for the
	// running command.
	cfg = viper.New()

	logOutput io.Writer = io.Discard
	logFile   *lumberjack.Logger
)

func init() {
	rootCmd.Version = Version

	rootCmd.PersistentFlags().String("config", "", "Config file (YAML, TOML or JSON)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Write debug logs to stderr")
	rootCmd.PersistentFlags().String("log-file", "", "Write debug logs to a rotating file")
	rootCmd.PersistentFlags().String("api-url", instapaper.DefaultBaseURL, "Instapaper API base URL")
	_ = rootCmd.PersistentFlags().MarkHidden("api-url")
}

// initConfig binds the running command's flags, INSTAPAPER_* environment
// variables and the optional config file, then sets up logging.
func initConfig(cmd *cobra.Command, args []string) error {
	cfg = viper.New()
	cfg.SetEnvPrefix("INSTAPAPER")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()

	if err := cfg.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if path := cfg.GetString("config"); path != "" {
		cfg.SetConfigFile(path)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	closeLogs()
	logOutput = io.Discard
	var writers []io.Writer
	if cfg.GetBool("verbose") {
		writers = append(writers, cmd.ErrOrStderr())
	}
	if path := cfg.GetString("log-file"); path != "" {
		logFile = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		writers = append(writers, logFile)
	}
	if len(writers) > 0 {
		logOutput = io.MultiWriter(writers...)
	}

	return nil
}

func closeLogs() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func newLogger(prefix string) *log.Logger {
	return log.New(logOutput, prefix, log.LstdFlags)
}

// authPath returns the credentials file for the running command.
func authPath() string {
	if p := cfg.GetString("auth"); p != "" {
		return p
	}
	return credentials.DefaultPath
}

// clientOptions configures API clients from the current settings.
func clientOptions() []instapaper.Option {
	opts := []instapaper.Option{instapaper.WithLogger(newLogger("[instapaper] "))}
	if u := cfg.GetString("api-url"); u != "" {
		opts = append(opts, instapaper.WithBaseURL(u))
	}
	return opts
}

// openSyncer opens the export database at dbPath and a Syncer writing to it.
// The caller closes the database.
func openSyncer(cmd *cobra.Command, dbPath string) (*sync.Syncer, *store.DB, error) {
	database, err := store.Open(dbPath, newLogger("[store] "))
	if err != nil {
		return nil, nil, err
	}

	syncer := sync.New(database, sync.Config{
		AuthPath: authPath(),
		Login:    sync.InstapaperLogin(clientOptions()...),
		Out:      cmd.OutOrStdout(),
		Logger:   newLogger("[sync] "),
	})
	return syncer, database, nil
}

// addAuthFlag registers the --auth flag shared by commands that read
// credentials.
func addAuthFlag(cmd *cobra.Command) {
	cmd.Flags().String("auth", credentials.DefaultPath, "Path to the credentials JSON file")
}

