package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "lowkey",
	Short:         "Gentle Telegram reminders to keep in touch with the people you care about",
	Long:          "Lowkey spends a fixed budget of pending reminders on the contacts that need attention most, and delivers them through a private Telegram bot.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(pendingCmd)
}
