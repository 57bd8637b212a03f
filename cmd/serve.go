package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vahan/internal/config"
	"vahan/internal/core/gateway"
	"vahan/internal/health"
	"vahan/internal/logger"
	"vahan/internal/server"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logr := logger.New("main")
	logr.LogInfof("starting at %s (env=%s)", cfg.HTTPAddr, cfg.AppEnv)

	command, err := lookupCommand(cfg)
	if err != nil {
		return err
	}
	runner := gateway.NewRunner(command, cfg.LookupTimeout)

	app := server.NewApp()
	healthHandler := server.RegisterRoutes(app, server.Dependencies{
		Lookup: runner,
		Checks: map[string]health.Check{
			"lookup_command": health.ExecutableCheck(command[0]),
			"temp_dir":       health.TempDirCheck(""),
		},
	})
	healthHandler.SetReady()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		_ = app.ShutdownWithTimeout(cfg.LookupTimeout + 5*time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	return nil
}

// lookupCommand resolves the child command line. By default the gateway
// re-executes its own binary with the lookup subcommand.
func lookupCommand(cfg config.Config) ([]string, error) {
	if cfg.LookupCommand != "" {
		return []string{cfg.LookupCommand, "lookup"}, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve own executable: %w", err)
	}
	return []string{exe, "lookup"}, nil
}
