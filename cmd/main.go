package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-review/pkg/api"
	"call-review/pkg/config"
	"call-review/pkg/playback"
	"call-review/pkg/remote"
	"call-review/pkg/session"
	"call-review/pkg/storage"

	"github.com/gorilla/mux"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize result storage
	results, err := storage.NewDiskStore(cfg.StoragePath)
	if err != nil {
		log.Fatalf("Failed to initialize result storage: %v", err)
	}
	defer results.Close()

	// Backend collaborators
	backend := remote.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	var checklists session.ChecklistSupplier = backend
	if cfg.Checklist.Dir != "" {
		checklists = remote.NewFileChecklists(cfg.Checklist.Dir)
		log.Printf("checklists: loading from %s", cfg.Checklist.Dir)
	}

	// Each session gets a simulated media clock until a real player binding
	// attaches; the duration falls back to the transcript extent.
	newSource := func(inputs session.Inputs, onAdvance func(pos float64)) playback.MediaSource {
		duration := transcriptExtent(inputs)
		feed := playback.NewWallTickFeed(cfg.Playback.TickInterval)
		src := playback.NewSimulatedSource(feed, func(source string) (float64, error) {
			if duration <= 0 {
				return 0, fmt.Errorf("no media duration for %q", source)
			}
			return duration, nil
		})
		src.OnAdvance(onAdvance)
		return src
	}

	manager := session.NewManager(backend, checklists, backend, results, newSource)
	defer manager.Shutdown()

	// Setup routes
	handlers := api.NewHandlers(manager)
	router := mux.NewRouter()
	handlers.Register(router)

	// Start HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server starting on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func transcriptExtent(inputs session.Inputs) float64 {
	if len(inputs.Segments) == 0 {
		return 0
	}
	return inputs.Segments[len(inputs.Segments)-1].EndTime
}
