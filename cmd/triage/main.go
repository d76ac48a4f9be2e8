package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/orris-inc/triage/internal/interfaces/cli/server"
	"github.com/orris-inc/triage/internal/interfaces/cli/tail"
	"github.com/orris-inc/triage/internal/shared/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "triage",
		Short:   "Triage - AI-assisted support ticket intake",
		Version: version.String(),
		Long:    `Triage accepts support tickets, drafts a summary and a reply with a language model, and streams generation to websocket listeners.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		tail.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
