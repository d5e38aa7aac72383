package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/angles-client-go/pkg/config"
	"github.com/ethpandaops/angles-client-go/pkg/mockserver"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a local mock Angles server",
	Long: `Start a local stand-in for the Angles REST API backed by sqlite or
postgres. Useful for developing reporters without an Angles deployment.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides server.listen)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}

	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("validating server config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	srv := mockserver.NewServer(log, &cfg.Server)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting mock server: %w", err)
	}

	log.WithField("base_url", "http://"+srv.Addr()+mockserver.APIPrefix+"/").
		Info("Mock Angles server ready")

	sig := <-sigCh
	log.WithField("signal", sig).Info("Shutting down mock server")
	cancel()

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping mock server: %w", err)
	}

	return nil
}
