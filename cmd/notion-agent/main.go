package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fyang0507/notion-agent/pkg/logger"
	"github.com/fyang0507/notion-agent/pkg/presenter"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("NOTION_AGENT")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.notion-agent")
	viper.AddConfigPath(".")

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("storage.backend", "local")
	if home, err := os.UserHomeDir(); err == nil {
		viper.SetDefault("storage.local_root", filepath.Join(home, ".notion-agent", "workspace"))
		viper.SetDefault("db_path", filepath.Join(home, ".notion-agent", "conversations.db"))
	}

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "notion-agent",
	Short: "Personal assistant for Notion skills and podcast subscriptions",
	Long: `notion-agent is a chat assistant that manages reusable Notion skills
and podcast subscriptions through a small command gateway. Skill artifacts
live on a local directory or a GitHub branch, so the same workspace is
usable from several machines.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := viper.GetString("log_level")
		if err := logger.Configure(level, viper.GetString("log_format")); err != nil {
			presenter.Warning(fmt.Sprintf("Invalid log_level %q, keeping current level: %v", level, err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) > 0 {
			runCmd.Run(cmd, args)
		} else {
			cmd.Help()
			os.Exit(1)
		}
	},
}

func main() {
	rootCmd.PersistentFlags().String("model", "", "LLM model to use (overrides config)")
	rootCmd.PersistentFlags().Int("max-tokens", 0, "Maximum tokens for response (overrides config)")
	rootCmd.PersistentFlags().String("storage-backend", "", "Artifact storage backend: local or github (overrides config)")

	viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
	viper.BindPFlag("max_tokens", rootCmd.PersistentFlags().Lookup("max-tokens"))
	viper.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("storage-backend"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
