package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"waylyrics/internal/app"
	"waylyrics/internal/config"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.toml (default $XDG_CONFIG_HOME/waylyrics/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Override app.log_level (trace, debug, info, warn, error)")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("log-level", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"trace", "debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	}))

	rootCmd.AddCommand(runCmd)
}

// loadConfig 读取配置并初始化日志；命令行的 --log-level 优先
func loadConfig() (*config.Config, zerolog.Logger, error) {
	logger := app.SetupLogging(lo.Ternary(logLevel != "", logLevel, config.DefaultLogLevel))
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, logger, err
	}
	if logLevel == "" {
		logger = app.SetupLogging(cfg.App.LogLevel)
	}
	return cfg, logger, nil
}

func runEngine(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}

var rootCmd = &cobra.Command{
	Use:          "waylyrics",
	Short:        "Show the current synced lyric line of your media player in waybar or i3blocks",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runEngine,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the lyrics engine until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runEngine,
}
