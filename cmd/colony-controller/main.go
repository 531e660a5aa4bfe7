package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	httpserver "example.com/colony-brain/internal/http"
	"example.com/colony-brain/internal/logging"
)

func main() {
	log := logging.New(os.Stderr, os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))
	if err := run(log); err != nil {
		log.Error("controller failed", "err", err)
		os.Exit(1)
	}
}

func run(log logging.Logger) error {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "controller.db"
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	server, err := httpserver.NewServer(dbPath, os.Getenv("MQTT_BROKER"), log)
	if err != nil {
		return err
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx, addr)
}
