package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "showbot",
	Short: "Science Show booking and chat gateway",
	Long: "Showbot answers menu commands for the Science Show, relays mini-app booking " +
		"orders to the operators' broadcast chat and keeps a bounded log of recent chat activity.",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
