package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/ragbot/internal/cli"
	"github.com/cloo-solutions/ragbot/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ragbot",
		Short: "Ragbot CLI - ask the NEC and Wattmonk assistant",
		Long: `Ragbot CLI talks to a running ragbotd server.

Environment variables:
  RAGBOT_API_KEY   API key for authentication (optional)
  RAGBOT_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.NamespacesCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
