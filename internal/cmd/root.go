package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/freighter-dev/freighter/internal/config"
	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/logging"
)

// Exit codes form the scripting contract.
const (
	ExitOK             = 0
	ExitFatal          = 1
	ExitValidation     = 2
	ExitLockContention = 3
	ExitPartialRelease = 4
)

var rootCmd = &cobra.Command{
	Use:   "freighter",
	Short: "Crash-resumable multi-package release orchestrator",
	Long: `Freighter releases every package of a workspace in one atomic attempt:
versions are bumped together, packages publish in dependency order, and
all progress is persisted so an interrupted release resumes exactly
where it stopped or rolls back cleanly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and maps the outcome to an exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(os.Stderr, renderError(err))
	return exitCode(err)
}

// exitCode maps an error to the scripting exit code contract.
func exitCode(err error) int {
	var verrs config.ValidationErrors
	switch {
	case errors.Is(err, errors.ErrAlreadyInProgress):
		return ExitLockContention
	case errors.Is(err, errors.ErrPartialRelease):
		return ExitPartialRelease
	case errors.As(err, &verrs),
		errors.Is(err, errors.ErrCredentialMissing),
		errors.Is(err, errors.ErrInvalidVersion),
		errors.Is(err, errors.ErrDependencyCycle),
		errors.Is(err, errors.ErrUnknownDependency),
		errors.Is(err, errors.ErrDuplicatePackage),
		errors.Is(err, errors.ErrManifestParse):
		return ExitValidation
	default:
		return ExitFatal
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/freighter/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/freighter")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FREIGHTER")
	// Replace dots with underscores for nested keys in env vars
	// e.g., FREIGHTER_PUBLISH_MAX_CONCURRENT for publish.max_concurrent
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newLogger builds the shared debug logger. All releases log to
// $HOME/.freighter/debug.log next to the workspace pointer.
func newLogger(cfg *config.Config) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.NewNopLogger()
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return logging.NewNopLogger()
	}
	logger, err := logging.NewLogger(filepath.Join(home, ".freighter"), cfg.Logging.Level)
	if err != nil {
		return logging.NewNopLogger()
	}
	return logger
}
