package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"

	"github.com/TFMV/explorer/internal/explorer"
)

var (
	cfgFile string
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "explorer",
	Short: "A live directory tree explorer",
	Long: `explorer serves flattened, expandable views of directory trees and pushes
a fresh view to every connected client whenever a watched directory changes.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Process exit codes.
const (
	ExitFailure = 1 // Runtime failure
	ExitBadRoot = 2 // A root could not be registered or materialized
	ExitPanic   = 3
)

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, explorer.ErrNotFound),
		errors.Is(err, explorer.ErrInvalidRoot),
		errors.Is(err, explorer.ErrRootExists),
		errors.Is(err, explorer.ErrPermissionDenied):
		return ExitBadRoot
	default:
		return ExitFailure
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.explorer.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (error|warn|info|debug)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("locale", "en", "BCP 47 locale used to sort entries")

	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("locale", rootCmd.PersistentFlags().Lookup("locale"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".explorer")
	}

	viper.SetEnvPrefix("EXPLORER")
	viper.AutomaticEnv()
	// PORT is honored without the prefix.
	viper.BindEnv("port", "EXPLORER_PORT", "PORT")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from the configured level.
func newLogger() (*zap.Logger, error) {
	level := viper.GetString("log-level")
	if viper.GetBool("verbose") {
		level = "debug"
	}
	return createLogger(level)
}

// createLogger creates a zap logger with the specified log level.
func createLogger(level string) (*zap.Logger, error) {
	var config zap.Config

	switch level {
	case "error":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	case "warn":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "info", "":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "debug":
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}
	return config.Build()
}

func locale() (language.Tag, error) {
	tag, err := language.Parse(viper.GetString("locale"))
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale %q: %w", viper.GetString("locale"), err)
	}
	return tag, nil
}
