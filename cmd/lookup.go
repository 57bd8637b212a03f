package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vahan/internal/config"
	"vahan/internal/core/lookup"
	"vahan/internal/logger"
	"vahan/internal/platform/browser"
)

const lookupUsage = "Usage: vahan lookup <REG_NO> <CHASSIS_LAST5>"

var errUsage = errors.New("wrong number of arguments")

func newLookupCommand() *cobra.Command {
	var requestID string
	cmd := &cobra.Command{
		Use:   "lookup <REG_NO> <CHASSIS_LAST5>",
		Short: "Run one portal lookup and print the result record",
		Long: "lookup drives the portal once and prints exactly one JSON record to stdout, " +
			"whatever happens. Diagnostics go to stderr.",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd.Context(), requestID, args)
		},
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "gateway request id, attached to every log line")
	return cmd
}

func runLookup(ctx context.Context, requestID string, args []string) error {
	start := time.Now()
	if len(args) != 2 {
		res := lookup.Result{Error: lookupUsage}
		if err := res.Write(os.Stdout); err != nil {
			return err
		}
		return errUsage
	}

	cfg := config.Load()
	log := logger.NewStderr("Lookup")
	if requestID != "" {
		log = log.With("request_id", requestID)
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return lookup.NewResult("", err, time.Since(start)).Write(os.Stdout)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := browser.DefaultOptions()
	opts.Headless = !cfg.Headful
	svc := lookup.NewService(
		browser.NewLauncher(opts, log),
		lookup.NewWorkflow(catalog, lookup.DefaultTimings(), log),
		log,
	)
	res := svc.Lookup(ctx, strings.ToUpper(args[0]), args[1])
	return res.Write(os.Stdout)
}

func loadCatalog(cfg config.Config) (*lookup.Catalog, error) {
	if cfg.CatalogPath == "" {
		return lookup.DefaultCatalog()
	}
	c, err := lookup.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", cfg.CatalogPath, err)
	}
	return c, nil
}
