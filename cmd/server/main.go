package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"redoubt/server/internal/app"
	"redoubt/server/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file (optional)")
	pprofTrace := flag.Bool("pprof-trace", false, "expose pprof and trace endpoints")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Config{
		ConfigPath:    *configPath,
		Observability: observability.Config{EnablePprofTrace: *pprofTrace},
	}); err != nil {
		log.Fatalf("%v", err)
	}
}
