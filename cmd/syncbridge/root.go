package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/criticalpoint/syncbridge/internal/config"
)

const defaultConfigPath = "config/syncbridge.toml"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "syncbridge",
	Short: "Drive a native simulation session and keep object handles in sync with it.",
	Long: `syncbridge loads a resource cache into the simulation engine, runs a session ` +
		`tick by tick and rebinds every live handle to the newest generation before ` +
		`the previous one is freed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $SYNCBRIDGE_CONFIG or "+defaultConfigPath+")")
	rootCmd.AddCommand(runCmd, journalCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("SYNCBRIDGE_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath
	}
	return config.Load(path)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
