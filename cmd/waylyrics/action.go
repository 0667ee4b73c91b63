package main

import (
	"fmt"
	"time"
	"waylyrics/internal/app"
	"waylyrics/internal/ipc"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(actionCmd)
}

var actionCmd = &cobra.Command{
	Use:       "action <name>",
	Short:     "Send a control command to the running instance",
	Long:      "Send a control command to the running instance.\nBind these to waybar on-click / on-scroll handlers.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: app.Commands,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		reply, err := ipc.SendCommand(cfg.App.SocketPath, args[0], 5*time.Second)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	},
}
