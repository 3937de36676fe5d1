package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"studio/api/internal/app"
	"studio/api/internal/blob"
	"studio/api/internal/config"
	"studio/api/internal/drafthist"
	"studio/api/internal/export"
	"studio/api/internal/genservice"
	"studio/api/internal/search"
	"studio/api/internal/session"
	"studio/api/internal/store"
	"studio/api/internal/templates"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.DraftsDir, 0o755); err != nil {
		log.Fatalf("failed to create drafts dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	draftHistory := drafthist.New(cfg.DraftsDir)
	generator := genservice.New(cfg.GenServiceURL, cfg.GenServiceToken, cfg.GenServiceTimeout)

	snapshots, err := session.NewRedisStore(cfg.RedisURL, cfg.SnapshotTTL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer snapshots.Close()

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	searchService.ReindexAllFromPG(ctx)

	var blobs *blob.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobs, err = blob.New(ctx, blob.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
		log.Printf("Export artifacts stored in bucket %q", cfg.MinioBucket)
	}

	catalog, err := templates.Load(cfg.TemplatesPath)
	if err != nil {
		log.Fatalf("template catalog failed to load: %v", err)
	}
	log.Printf("Loaded %d content templates", len(catalog.All()))

	deps := app.Deps{
		Store:     dataStore,
		Snapshots: snapshots,
		Generator: generator,
		Drafts:    draftHistory,
		Search:    searchService,
		Exporter:  export.NewService(),
		Catalog:   catalog,
	}
	if blobs != nil {
		deps.Blobs = blobs
	}
	service := app.New(cfg, deps)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Studio API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
