package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docqa-be/internal/bootstrap"
	"docqa-be/internal/config"
	"docqa-be/internal/tracer"
	"docqa-be/pkg/database"
)

const shutdownGrace = 30 * time.Second

func main() {
	shutdownTracer := tracer.InitTracer("docqa-worker")
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies
	container := bootstrap.NewWorkerContainer(gormDB, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		log.Println("Background: Starting Notifier Service...")
		if err := container.Notifier.Consume(ctx); err != nil {
			log.Printf("Background Notifier Error: %v", err)
		}
	}()

	// 4. Run Worker
	go container.Worker.Run(ctx)

	// 5. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Let the in-flight job finish before exiting.
	log.Println("Shutting down worker...")
	done := make(chan struct{})
	go func() {
		defer close(done)
		container.Worker.Stop()
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		log.Println("Shutdown grace period exceeded, exiting")
	}

	if container.NatsPub != nil {
		container.NatsPub.Close()
	}
	if err := container.Queue.Close(); err != nil {
		log.Printf("Queue close error: %v", err)
	}
	container.Logger.Sync()
}
