package main

import (
	"context"
	"log"

	"essay-coach-be/internal/bootstrap"
	"essay-coach-be/internal/config"
	"essay-coach-be/internal/server"
	"essay-coach-be/internal/tracer"
	"essay-coach-be/pkg/database"
)

func main() {
	// 0. Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Consumer Service...")
		if err := container.ConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	// Warm the embedding model so the first chat turn doesn't pay the load.
	// Failure is fine: encoding lazily retries per request.
	go func() {
		if err := container.Encoder.Initialize(context.Background()); err != nil {
			log.Printf("Background: embedding model warm-up failed: %v (will retry lazily)", err)
		} else {
			log.Println("Background: embedding model ready")
		}
	}()

	// 5. Run Server
	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
