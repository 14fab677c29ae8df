package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/secure-exam/relay/api/handlers"
	"github.com/secure-exam/relay/internal/audit"
	"github.com/secure-exam/relay/internal/config"
	"github.com/secure-exam/relay/internal/db"
	"github.com/secure-exam/relay/internal/registry"
	"github.com/secure-exam/relay/internal/relay"
	"github.com/secure-exam/relay/internal/repository"
	"github.com/secure-exam/relay/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audit trail, optional
	var events *repository.EventRepository
	var recorder *audit.Recorder
	if cfg.Audit.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Audit.DBPath), 0755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
		database, err := db.InitDB(cfg.Audit.DBPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		events = repository.NewEventRepository(database)
		recorder = audit.NewRecorder(events, cfg.Audit.BufferSize)
		go audit.RunRetention(ctx, events, cfg.Audit.Retention, time.Hour)
		log.Printf("Audit trail enabled at %s", cfg.Audit.DBPath)
	}

	relayCfg := relay.Config{
		KickReason:  cfg.Messages.KickReason,
		BlockReason: cfg.Messages.BlockReason,
	}
	if recorder != nil {
		relayCfg.Recorder = recorder
	}

	hubs := ws.NewHubManager()
	students := hubs.GetOrCreate(handlers.StudentNamespace)
	teachers := hubs.GetOrCreate(handlers.TeacherNamespace)

	reg := registry.New()
	rl := relay.New(reg, students, teachers, relayCfg)
	rl.Bind(students, teachers)

	router := handlers.NewRouter(handlers.Server{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Hubs:           hubs,
		Registry:       reg,
		Relay:          rl,
		Events:         events,
	})

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down server...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()

		hubs.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
	}()

	log.Printf("Relay listening on %s (origins: %v)", cfg.Addr(), cfg.CORS.AllowedOrigins)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	<-stopped

	if recorder != nil {
		closeCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := recorder.Close(closeCtx); err != nil {
			log.Printf("Audit flush incomplete: %v (%d dropped)", err, recorder.Dropped())
		}
		done()
	}
	db.CloseDB()
}
