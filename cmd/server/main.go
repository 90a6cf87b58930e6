package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/beamlab/erdsim/internal/config"
	"github.com/beamlab/erdsim/internal/logging"
	"github.com/beamlab/erdsim/internal/monitoring"
	"github.com/beamlab/erdsim/internal/runner"
	"github.com/beamlab/erdsim/internal/server"
)

func main() {
	cfg := config.LoadOrDefault()

	port := flag.String("port", cfg.Server.Port, "Server port")
	binDir := flag.String("bin", cfg.Sim.BinDir, "Directory holding the mcerd executable")
	flag.Parse()
	cfg.Server.Port = *port
	cfg.Sim.BinDir = *binDir

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	metrics := monitoring.NewMetrics()
	manager := runner.NewManager(cfg.Sim, logger, metrics)
	srv := server.NewServer(cfg, manager, logger, metrics)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(cfg.Server.Host + ":" + cfg.Server.Port); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("shutting down, stopping live simulations")
		srv.Close()
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
