package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the attachextract application
var rootCmd = &cobra.Command{
	Use:   "attachextract",
	Short: "Moves Gmail attachments to local files and slims down the messages",
	Long: `attachextract saves the attachments of Gmail messages matching a search
query to the local disk and replaces each message by a copy in which the
attachments are swapped for short text descriptors naming the saved files.

It can run as:
  - A standalone CLI tool (default)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "attachextract version %s\n" .Version}}`)

	// If no subcommand is provided, run the extract command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "extract")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
