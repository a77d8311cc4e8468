package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/soffa-projects/matchqueue/app"
	"github.com/soffa-projects/matchqueue/config"
	"github.com/soffa-projects/matchqueue/log"
)

var version = "dev"

func main() {
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		log.Fatal("%v", err)
	}
	log.Setup(cfg.LogLevel, cfg.LogJSON)

	application, err := app.New("matchqueue", version, cfg).Init()
	if err != nil {
		log.Fatal("failed to initialize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.Error("server stopped: %v", err)
		os.Exit(1)
	}
}
