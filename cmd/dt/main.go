package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// defaultConfigPath is where commands look for the config file.
const defaultConfigPath = "devtask.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dt",
		Short: "devtask: task cards with AI-generated specs",
		Long:  "devtask manages task cards and derives specifications, analyses and test cases from them with an LLM.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newCardCmd())
	cmd.AddCommand(newTestCaseCmd())
	cmd.AddCommand(newKBCmd())
	cmd.AddCommand(newTagCmd())
	cmd.AddCommand(newSettingsCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newGenCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dt %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
