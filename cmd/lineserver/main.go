package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lawnchairsociety/sockclient/internal/config"
	"github.com/lawnchairsociety/sockclient/internal/lineserver"
	"github.com/lawnchairsociety/sockclient/internal/logger"
)

func main() {
	// Parse command-line flags
	serverConfigFile := flag.String("config", "data/server.yaml", "Path to server config YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	tcpAddr := flag.String("tcp", "", "TCP listen address (overrides config)")
	udpAddr := flag.String("udp", "", "UDP listen address (overrides config)")
	wsAddr := flag.String("ws", "", "WebSocket listen address (overrides config)")
	flag.Parse()

	// Initialize logger first (before any logging)
	logConfig, _ := logger.LoadConfig(*loggingConfig)
	logger.Initialize(logConfig)
	defer logger.Close()

	cfg, err := config.LoadServerConfig(*serverConfigFile)
	if err != nil {
		logger.Warning("Failed to load server config, using defaults", "path", *serverConfigFile, "error", err)
	}
	if *tcpAddr != "" {
		cfg.TCPAddress = *tcpAddr
	}
	if *udpAddr != "" {
		cfg.UDPAddress = *udpAddr
	}
	if *wsAddr != "" {
		cfg.WebSocket.Address = *wsAddr
	}

	srv := lineserver.New(cfg)
	if err := srv.Start(); err != nil {
		log.Fatalf("Line server error: %v", err)
	}

	logger.Always("Line server running",
		"tcp", cfg.TCPAddress,
		"udp", cfg.UDPAddress,
		"websocket", cfg.WebSocket.Address)
	logger.Info("Press Ctrl+C to shutdown")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server")
	srv.Shutdown()
	logger.Info("Server stopped")
}
