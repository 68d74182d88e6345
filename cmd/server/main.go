package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dev1505/docqa/internal/api"
	"github.com/dev1505/docqa/internal/config"
	"github.com/dev1505/docqa/internal/docstore"
	"github.com/dev1505/docqa/internal/embedders"
	"github.com/dev1505/docqa/internal/extract"
	"github.com/dev1505/docqa/internal/llm"
	"github.com/dev1505/docqa/internal/objectstore"
	"github.com/dev1505/docqa/internal/service"
	"github.com/dev1505/docqa/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON configuration file")
	addr := flag.String("addr", "", "listen address, overrides the configured one")
	flag.Parse()

	// A missing .env file is fine; environment variables may come from
	// the actual environment.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, err := docstore.NewStore(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer docs.Close()

	objects, err := objectstore.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to object storage: %v", err)
	}
	defer objects.Close()

	vectors, err := vectorstore.New(ctx, cfg.Qdrant)
	if err != nil {
		log.Fatalf("Failed to connect to Qdrant: %v", err)
	}
	defer vectors.Close()

	svc := service.New(
		embedders.NewGeminiEmbedder(cfg.Gemini),
		extract.NewClient(cfg.Tika),
		vectors,
		docs,
		objects,
		llm.NewClient(cfg.Groq),
		cfg.Chunking,
		cfg.Retrieval,
	)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewServer(svc, cfg.Server.MaxUploadSizeMB),
	}

	go func() {
		log.Printf("Listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
