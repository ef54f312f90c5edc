package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/wincapture/internal/config"
	"github.com/breeze-rmm/wincapture/internal/logging"
)

var (
	version   = "0.1.0"
	cfgFile   string
	backend   string
	logLevel  string
	logFormat string
	timeout   time.Duration
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:           "wincapture",
	Short:         "Single-frame screen capture",
	Long:          `wincapture grabs one still frame of a monitor or a window and writes it as PNG or JPEG.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wincapture v%s\n", version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cleanup, err := loadConfig()
		if err != nil {
			return err
		}
		defer cleanup()
		return writeConfigYAML(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is wincapture.yaml in the user config dir)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "capture backend: auto, wgc or screenshot")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "how long to wait for the first frame (e.g. 5s)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(windowCmd)
	rootCmd.AddCommand(monitorsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, applies command-line overrides, validates
// the result and starts logging. The returned cleanup closes the log file.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlagOverrides(cfg)

	// Validation problems are logged and clamped, never fatal.
	cfg.Validate()

	cleanup, err := setupLogging(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cleanup, nil
}

func applyFlagOverrides(cfg *config.Config) {
	if backend != "" {
		cfg.Backend = backend
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if timeout > 0 {
		secs := int((timeout + time.Second - 1) / time.Second)
		cfg.FrameTimeoutSeconds = secs
	}
}

func setupLogging(cfg *config.Config) (func(), error) {
	if cfg.LogFile == "" {
		logging.Init(cfg.LogFormat, cfg.LogLevel, nil)
		return func() {}, nil
	}

	rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, io.MultiWriter(os.Stderr, rw))
	return func() { _ = rw.Close() }, nil
}

func writeConfigYAML(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
