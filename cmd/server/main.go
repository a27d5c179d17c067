package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/lunevo/bidwire/internal/db"
	"github.com/lunevo/bidwire/internal/events"
	"github.com/lunevo/bidwire/internal/handlers"
	"github.com/lunevo/bidwire/internal/repository"
	"github.com/lunevo/bidwire/internal/router"
	"github.com/lunevo/bidwire/internal/router/config"
	"github.com/lunevo/bidwire/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	runDBMigration(cfg.MigrationURL, cfg.PostgresConn)

	dbPool, err := db.InitDb(cfg)
	if err != nil {
		log.Fatalf("error initializing database: %v", err)
	}
	defer dbPool.Close()

	logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

	projectRepo := repository.NewPostgresProjectRepository(dbPool)
	bidRepo := repository.NewPostgresBidRepository(dbPool)

	hub := events.NewHub()

	projectService := services.NewProjectService(projectRepo)
	bidService := services.NewBidService(projectRepo, bidRepo, hub, logger)

	projectHandler := handlers.NewProjectHandler(projectService, logger, 5*time.Second)
	bidHandler := handlers.NewBidHandler(bidService, logger, 5*time.Second)
	eventHandler := handlers.NewEventHandler(hub, logger, time.Duration(cfg.EventHoldSeconds)*time.Second)

	routes := router.InitRoutes(projectHandler, bidHandler, eventHandler)

	server := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: routes,
		// Long-poll requests hold the connection for up to a minute.
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      events.MaxHoldTime + 15*time.Second,
	}

	log.Printf("server is listening on %s...", cfg.ServerAddress)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func runDBMigration(migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatal("cannot create a new migrate instance", err)
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("failed to run migrate up:", err)
	}
	log.Println("db migrated successfully")
}
