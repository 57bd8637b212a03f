package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vahan",
		Short: "Vehicle owner mobile-number lookup",
		Long: "vahan serves GET /lookup and resolves each request by driving a headless " +
			"browser through the VAHAN citizen portal in a dedicated child process.",
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newLookupCommand())
	rootCmd.AddCommand(newInstallCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
