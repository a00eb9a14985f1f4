package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/theoremus-urban-solutions/railopt/config"
	"github.com/theoremus-urban-solutions/railopt/engine"
	"github.com/theoremus-urban-solutions/railopt/internal"
	"github.com/theoremus-urban-solutions/railopt/model"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (defaults to ./config.yml)")
	networkPath := flag.String("network", "", "path to network reference YAML (overrides config)")
	flag.Parse()

	internal.InitLogging()

	// .env overrides for local development.
	_ = godotenv.Load(".env")

	paths := []string{}
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	if p := os.Getenv("RAILOPT_CONFIG"); p != "" {
		paths = append(paths, p)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	netFile := cfg.NetworkFile
	if *networkPath != "" {
		netFile = *networkPath
	}
	if netFile == "" {
		log.Fatal("no network reference file configured (flag -network or networkFile in config.yml)")
	}
	network, err := model.LoadNetwork(netFile)
	if err != nil {
		log.Fatalf("load network: %v", err)
	}
	log.Printf("loaded network with %d trains", len(network.Trains()))

	eng := engine.New(cfg, network, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := serveHTTP(ctx, cfg.Server, eng); err != nil {
			log.Printf("http server: %v", err)
			stop()
		}
	}()

	eng.Run(ctx)
	log.Println("shutting down")
}
