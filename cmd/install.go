package main

import (
	"github.com/spf13/cobra"

	"vahan/internal/logger"
	"vahan/internal/platform/browser"
)

func newInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Download the playwright driver and Chromium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New("install")
			log.LogInfo("installing playwright driver and chromium")
			if err := browser.Install(); err != nil {
				log.LogError("install failed", err)
				return err
			}
			log.LogInfo("install complete")
			return nil
		},
	}
}
