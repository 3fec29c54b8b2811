// Package cmd provides the CLI commands of the attendance web front-end.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "attendance-web",
	Short: "ZitiAcademy Attendance web front-end",
	Long: `attendance-web serves the ZitiAcademy Attendance pages and talks to the
attendance API on behalf of the browser.

Configuration is read from .env, the environment and an optional YAML file.
Environment variables use the key path with "." replaced by "_", for example
API_BASE_URL or QUERY_STALE_TIME.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML config file")
}
