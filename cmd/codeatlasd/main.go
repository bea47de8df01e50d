package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
	"github.com/codeatlas/codeatlas/internal/parse"
	"github.com/codeatlas/codeatlas/internal/server/api"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	var store graph.Store
	if cfg.Backend == "memory" {
		store = graph.NewMemory()
		log.Println("Using in-memory graph store")
	} else {
		store, err = graph.NewNeo4j(ctx, graph.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Neo4j: %v", err)
		}
		log.Println("Connected to Neo4j successfully")
	}
	defer store.Close(ctx)

	var loader *parse.Loader
	if cfg.GrammarDir != "" {
		loader = parse.NewLoader(cfg.GrammarDir)
	} else {
		loader = parse.NewLoader()
	}
	defer loader.Close()

	apiServer := api.New(store, jobs.NewStore(), cfg, loader)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting codeatlasd on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
