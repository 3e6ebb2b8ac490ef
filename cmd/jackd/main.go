package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/getjack-org/jack-sub003/internal/api"
	"github.com/getjack-org/jack-sub003/internal/config"
	"github.com/getjack-org/jack-sub003/internal/controlplane"
	"github.com/getjack-org/jack-sub003/internal/deploy"
	"github.com/getjack-org/jack-sub003/internal/observability"
	"github.com/getjack-org/jack-sub003/internal/registry"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// CLI flags
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("Jack %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Build Date: %s\n", BuildDate)
		os.Exit(0)
	}

	// Initialize logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("Starting Jack deploy service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	mirror, err := registry.NewMirror(cfg.Registry.MirrorURL)
	if err != nil {
		log.Fatal().Err(err).Str("mirror_url", cfg.Registry.MirrorURL).Msg("Invalid registry mirror URL")
	}

	client := controlplane.NewClient(cfg.ControlPlane.URL,
		controlplane.WithTimeout(cfg.ControlPlane.Timeout),
		controlplane.WithToken(cfg.ControlPlane.Token),
	)

	deployer := deploy.NewDeployer(client, mirror,
		deploy.WithMetrics(observability.NewMetrics()),
		deploy.WithModuleFetchTimeout(cfg.Registry.FetchTimeout),
	)

	// Initialize API server
	server := api.NewServer(cfg, deployer)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx := context.Background()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
