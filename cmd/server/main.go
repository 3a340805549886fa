package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/config"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override env vars
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Listen host")
	extensions := flag.String("extensions", cfg.Extensions.ExtensionsPath, "Extension install root")
	nodes := flag.String("nodes", cfg.Extensions.NodesPath, "Node install root")
	watch := flag.Bool("watch", cfg.Extensions.WatchEnabled, "Rescan when install roots change")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	if *port != cfg.Server.Port && os.Getenv("PUBLIC_URL") == "" {
		cfg.Extensions.PublicURL = "http://localhost:" + *port
	}
	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Extensions.ExtensionsPath = *extensions
	cfg.Extensions.NodesPath = *nodes
	cfg.Extensions.WatchEnabled = *watch
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
