package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lawnchairsociety/sockclient/internal/config"
	"github.com/lawnchairsociety/sockclient/internal/idle"
	"github.com/lawnchairsociety/sockclient/internal/logger"
	"github.com/lawnchairsociety/sockclient/internal/session"
	"github.com/lawnchairsociety/sockclient/internal/text"
	"github.com/lawnchairsociety/sockclient/internal/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command-line flags
	addr := flag.String("addr", "", "Server address, optionally with scheme and port (prompted when empty)")
	port := flag.Int("port", 0, "Server port used when the address has none (prompted when 0)")
	proto := flag.String("proto", "", "Transport: TCP or UDP (prompted when empty)")
	configFile := flag.String("config", "data/client.yaml", "Path to client config YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	textFile := flag.String("text", "data/text.yaml", "Path to text YAML file")
	noPrompt := flag.Bool("no-prompt", false, "Use config defaults instead of prompting for missing values")
	flag.Parse()

	// Initialize logger first (before any logging)
	logConfig, _ := logger.LoadConfig(*loggingConfig)
	logger.Initialize(logConfig)
	defer logger.Close()

	cfg, err := config.LoadClientConfig(*configFile)
	if err != nil {
		logger.Warning("Failed to load client config, using defaults", "path", *configFile, "error", err)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid client config: %v\n", err)
		return 1
	}

	if err := text.Initialize(*textFile); err != nil {
		logger.Debug("Using built-in text", "path", *textFile, "error", err)
	}
	txt := text.GetInstance()

	in := bufio.NewReader(os.Stdin)
	fmt.Fprintln(os.Stdout, txt.Banner())

	p := &prompter{in: in, out: os.Stdout, text: txt}
	serverAddr, kind, err := resolve(p, cfg, choices{
		addr:     *addr,
		port:     *port,
		proto:    *proto,
		noPrompt: *noPrompt,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	timer := idle.New(nil)
	client, err := transport.New(kind, serverAddr, transport.Options{
		DialTimeout:  cfg.DialTimeout(),
		ReadTimeout:  cfg.ReadTimeout(),
		ResponseWait: cfg.ResponseWait(),
		BufferSize:   cfg.BufferSize,
		Activity:     timer,
		Opened:       statusLine(os.Stdout, txt),
	})
	if err != nil {
		logger.Error("Failed to create client", "transport", kind.String(), "server", serverAddr.String(), "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := session.New(client, timer, session.Options{
		In:          in,
		Out:         os.Stdout,
		Text:        txt,
		IdleTimeout: cfg.IdleTimeout(),
	})
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
