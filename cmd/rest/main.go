package main

import (
	"context"
	"log"

	"marketplace-be/internal/bootstrap"
	"marketplace-be/internal/config"
	"marketplace-be/internal/server"
	"marketplace-be/internal/tracer"
	"marketplace-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer
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
	container.WebSocketHub.Run()

	go func() {
		log.Println("Background: Starting Ticket Conversion Consumer...")
		if err := container.TicketConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	go func() {
		log.Println("Background: Starting Typing Janitor...")
		container.TypingJanitor.Run(context.Background())
	}()

	if container.AlertService != nil {
		if err := container.AlertService.Start(); err != nil {
			log.Printf("Background Alert Service Error: %v", err)
		}
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
