package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gosuperior/adapters/excel"
	"gosuperior/adapters/postgres"
	"gosuperior/adapters/report"
	"gosuperior/app"
	"gosuperior/internal"
	"gosuperior/internal/api"
	"gosuperior/internal/config"
	"gosuperior/internal/engine"
	"gosuperior/internal/errors"
	"gosuperior/internal/migration"
	"gosuperior/ports"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase initializes the PostgreSQL database connection and schema
func initDatabase(ctx context.Context, appConfig *config.Config) (*sqlx.DB, error) {
	if !appConfig.Database.Enabled() {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)
	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, appConfig)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	service := app.NewProbabilityService(
		nil, nil,
		postgres.NewResultRepository(db),
		engine.New(appConfig.Engine.Workers, logger),
		appConfig.Columns,
		logger,
	)

	renderers := map[string]ports.RendererPort{
		"html":     report.HTMLRenderer{},
		"markdown": report.MarkdownRenderer{},
	}
	exporters := map[string]ports.ExporterPort{
		"xlsx": excel.NewXLSXExporter(),
	}
	for _, t := range []excel.Table{excel.TableGxE, excel.TableStdErr, excel.TableGxR, excel.TableMarginal} {
		exporters[string(t)] = excel.NewCSVExporter(t)
	}

	server := api.NewServer(service, renderers, exporters, logger)
	httpServer := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting API server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
	log.Println("API server stopped")
}
