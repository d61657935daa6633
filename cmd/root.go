package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/derivimg/internal/config"
	"github.com/AnyUserName/derivimg/internal/logging"
)

var (
	version    = "0.1.0"
	verbose    bool
	configFile string
	logFormat  string

	// Resolved in PersistentPreRunE for every command.
	settings *config.Config
	logger   = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "derivimg",
	Short: "Responsive image derivative generator",
	Long: `derivimg turns source images into width x format derivatives with
predictable filenames, URLs and a manifest.

With --skip-original, outputs that match the source's native width and
format are copied byte for byte instead of being decoded and re-encoded.`,
	Version:       version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./derivimg.yaml or $HOME/derivimg.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"derivimg %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// setup loads configuration with the command's flags bound and builds the
// logger.
func setup(cmd *cobra.Command) error {
	v := config.New(configFile)
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	settings = cfg
	logger = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger)
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("config loaded", "file", used)
	}
	return nil
}
