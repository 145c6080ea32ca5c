package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/account-notifier/pkg/config"
	"github.com/telekom/account-notifier/pkg/mail"
	"github.com/telekom/account-notifier/pkg/system"
)

// DebugEnv enables debug logging when --debug is not given.
const DebugEnv = "NOTIFIER_DEBUG"

type Config struct {
	ConfigPath   string
	OutputWriter io.Writer
	// Sender replaces the configured mail transport when set.
	Sender mail.Sender
}

type runtimeState struct {
	configPath string
	debug      bool
	writer     io.Writer
	sender     mail.Sender
	cfg        config.Config
	log        *zap.SugaredLogger
}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   getEnvString(config.ConfigPathEnv, ""),
		OutputWriter: os.Stdout,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{configPath: cfg.ConfigPath, writer: cfg.OutputWriter, sender: cfg.Sender}

	root := &cobra.Command{
		Use:           "notifier",
		Short:         "Account lifecycle notifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if cmd.Name() == "version" {
				return nil
			}

			log, err := system.NewLogger(rt.debug)
			if err != nil {
				return err
			}
			rt.log = log

			loaded, err := config.Load(rt.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			rt.cfg = loaded
			if rt.debug {
				log.Debugw("Loaded configuration", "config", loaded)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file (default ./config.yaml)")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", getEnvBool(DebugEnv, false), "Enable debug level logging and CORS")

	root.AddCommand(
		newServeCommand(rt),
		newSendCommand(rt),
		newVersionCommand(rt),
	)

	return root
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
