package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/haggisnet/haggisnet/internal/core/observability/log"
	"github.com/haggisnet/haggisnet/internal/relay"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	listenAddr := flag.String("listen", "", "listen address, overrides the config")
	flag.Parse()

	config := relay.DefaultConfig()
	if *configPath != "" {
		loaded, err := relay.LoadConfig(*configPath)
		if err != nil {
			fmt.Println("Error loading config:", err)
			os.Exit(1)
		}
		config = loaded
	}
	if *listenAddr != "" {
		config.ListenAddr = *listenAddr
	}

	logger := log.New(config.LogLevel)
	srv := relay.NewServer(config, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-stopCh
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		fmt.Println("Error running relay:", err)
		os.Exit(1)
	}
}
