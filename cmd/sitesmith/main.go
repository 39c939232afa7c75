package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath    string
	workspaceRoot string
)

var rootCmd = &cobra.Command{
	Use:   "sitesmith",
	Short: "Tool server for scaffolding and editing web projects",
	Long: `sitesmith serves a set of project tools (scaffolding, file editing,
script runs, mock deploys) to clients over stdio or HTTP. Each HTTP
client gets its own session; stdio serves a single implicit session.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&workspaceRoot, "workspace", "w", "", "workspace root directory")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(devCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
