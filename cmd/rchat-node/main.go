// Command rchat-node runs one node of a peer-to-peer encrypted chat network:
// it owns an identity, a local message store, and the transport/discovery
// stack, and exposes a local command bridge a separate UI process drives.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	// Registers the concrete key-generator and key-format constructors
	// crypto.SetKeyGenerators/SetFormatConstructors expect, and the
	// Ethereum/Solana did.Anchor constructors did.New dispatches to. Both
	// packages exist to break an import cycle between their concrete chain
	// clients and the interfaces identity/did and crypto declare; nothing
	// else in the program imports them.
	_ "github.com/rchat-io/rchat-node/internal/cryptoinit"
	_ "github.com/rchat-io/rchat-node/internal/didinit"

	"github.com/rchat-io/rchat-node/config"
	"github.com/rchat-io/rchat-node/internal/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rchat-node",
	Short: "rchat-node runs one peer in the rchat network",
	Long: `rchat-node is the peer process of a decentralized, end-to-end
encrypted chat network. It holds the node's identity, message history, and
file blobs behind a password-locked vault, and speaks a local command
bridge a UI process drives over a WebSocket connection.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (overrides RCHAT_ENV-based discovery)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rchat-node: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig centralizes the one piece of logic every subcommand needs:
// resolve a config.Config either from --config or from config.Load's own
// environment-driven discovery.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

// buildLogger wires cfg.Logging into an internal/logger.Logger. A nil
// Logging section (possible from a hand-edited config file) falls back to
// NewDefaultLogger's own RCHAT_LOG_LEVEL handling.
func buildLogger(cfg *config.Config) (logger.Logger, error) {
	if cfg.Logging == nil {
		return logger.NewDefaultLogger(), nil
	}

	output := os.Stdout
	if cfg.Logging.Output == "file" && cfg.Logging.FilePath != "" {
		f, err := os.OpenFile(cfg.Logging.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l := logger.NewLogger(f, parseLevel(cfg.Logging.Level))
		l.SetPrettyPrint(cfg.Logging.Format == "pretty")
		return l, nil
	}

	l := logger.NewLogger(output, parseLevel(cfg.Logging.Level))
	l.SetPrettyPrint(cfg.Logging.Format == "pretty")
	return l, nil
}

func parseLevel(level string) logger.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return logger.DebugLevel
	case "WARN":
		return logger.WarnLevel
	case "ERROR":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
