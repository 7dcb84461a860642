package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ragchat/internal/config"
	"ragchat/internal/logger"
)

var (
	flagConfig  string
	flagDataDir string
	flagUser    string
	flagVerbose bool

	// cfg is loaded before any command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "ragchat",
	Short:         "Chat with your documents through a local LLM",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetVerbose(flagVerbose)

		var (
			path string
			err  error
		)
		if flagConfig != "" {
			path = flagConfig
			cfg, err = config.Load(flagConfig)
		} else {
			cfg, path, err = config.LoadDefault()
		}
		if err != nil {
			return err
		}
		if flagDataDir != "" {
			cfg.DataDir = flagDataDir
		}
		if flagUser != "" {
			cfg.User = flagUser
		}
		if path != "" {
			logger.Debug("config: %s", path)
		}
		logger.Debug("data dir: %s, user: %q", cfg.DataDir, cfg.User)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./ragchat.toml or ~/.config/ragchat/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "collection storage directory (overrides data_dir)")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "user name for private collections (overrides user)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "print debug output")
}
