package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danieljhkim/fex-rootfs-generator/internal/config"
	"github.com/danieljhkim/fex-rootfs-generator/internal/engine"
	"github.com/danieljhkim/fex-rootfs-generator/internal/fsops"
	"github.com/danieljhkim/fex-rootfs-generator/internal/logging"
)

// loadConfig builds the configuration from defaults, the --config file,
// the environment and the flags of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger creates the logger for cfg writing to cmd's stderr.
func newLogger(cmd *cobra.Command, cfg *config.Config) *logrus.Logger {
	return logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Target: cfg.LogTarget,
		Output: cmd.ErrOrStderr(),
	})
}

// newEngine creates a new engine with real implementations of all dependencies.
func newEngine(cmd *cobra.Command) (*engine.Engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	return engine.New(fsops.NewRealFS(), *cfg, newLogger(cmd, cfg)), nil
}

// outputJSON writes a value as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
