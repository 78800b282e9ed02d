// Package main is the entry point for the tasksync CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"tasksync/internal/backend/firebase"
	"tasksync/internal/cli"
	"tasksync/internal/commands"
	"tasksync/internal/config"
	"tasksync/internal/metrics"
	"tasksync/internal/service"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	recorder := metrics.NewCollector(registry)

	// Every backend call is counted and timed.
	factory := func(ctx context.Context, cfg *config.Config, log *zap.Logger) (service.Service, error) {
		client, err := firebase.NewFromConfig(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return metrics.Instrument(client, recorder), nil
	}

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory).WithMetrics(registry)

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	os.Exit(code)
}
