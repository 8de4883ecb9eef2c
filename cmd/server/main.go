package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/emergency-dispatch/internal/httpapi"
)

func main() {
	srv, err := httpapi.NewServerFromEnv()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	cfg := srv.Config()

	if cfg.RunMigrations && cfg.PGDSN != "" {
		runMigrations(cfg.PGDSN)
	}

	hs := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Printf("dispatch server listening on %s", cfg.HTTPAddr)
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	srv.Close()
	log.Println("dispatch server stopped")
}

func runMigrations(dsn string) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Printf("migration db open error: %v", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_requests.sql"))
	if err != nil {
		log.Printf("migration read error: %v", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		log.Printf("migration exec error: %v", err)
		return
	}
	log.Printf("migration applied: 001_create_requests.sql")
}
