// main is the entry point of the student base service.
//
// STARTUP SEQUENCE:
//  1. Load configuration (.env, YAML file, environment overrides)
//  2. Initialise the logger
//  3. Open the database (SQLite or Postgres) and create the schema
//  4. Build the side effects: audit sink and UI revalidation
//  5. Register all HTTP routes
//  6. Start the HTTP server in a separate goroutine
//  7. Block until an OS signal arrives, then shut down gracefully
//
// RUNNING THE SERVER:
//
//	go run ./cmd/student-base --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/student-base
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aanand-mishra/student-base/internal/audit"
	"github.com/aanand-mishra/student-base/internal/config"
	"github.com/aanand-mishra/student-base/internal/effects"
	"github.com/aanand-mishra/student-base/internal/http/handlers/student"
	"github.com/aanand-mishra/student-base/internal/importer"
	"github.com/aanand-mishra/student-base/internal/revalidate"
	"github.com/aanand-mishra/student-base/internal/storage"
	"github.com/aanand-mishra/student-base/internal/storage/postgres"
	"github.com/aanand-mishra/student-base/internal/storage/sqlite"
)

const version = "1.0.0"

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting student-base",
		slog.String("env", cfg.Env),
		slog.String("version", version),
	)

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	store, err := openStorage(cfg.Storage)
	if err != nil {
		log.Error("failed to initialise storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	log.Info("storage initialised", slog.String("driver", cfg.Storage.Driver))

	// ── 4. Side Effects ───────────────────────────────────────────────────
	auditLog, closeAudit := auditLogger(cfg.Audit, store)
	defer func() {
		if err := closeAudit.Close(); err != nil {
			log.Warn("failed to close audit sink", slog.String("error", err.Error()))
		}
	}()

	fx := effects.New(
		auditLog,
		revalidate.New(cfg.Revalidate.URL, cfg.Revalidate.Secret, cfg.Revalidate.Timeout),
		cfg.Revalidate.Path,
		log,
	)

	im := importer.New(store, fx,
		importer.WithMaxReportedInvalid(cfg.Import.MaxReportedInvalid),
		importer.WithLogger(log),
	)

	// ── 5. Register HTTP Routes ───────────────────────────────────────────
	// Route table:
	//   POST   /api/students/import       → bulk import from a CSV upload
	//   GET    /api/students/eligibility  → look up a student by cpf or email
	//   POST   /api/students              → create a new student
	//   GET    /api/students              → list students (search, foreign, paging)
	//   GET    /api/students/{id}         → get one student by ID
	//   PUT    /api/students/{id}         → update a student
	//   DELETE /api/students/{id}         → delete a student
	router := http.NewServeMux()

	router.HandleFunc("POST /api/students/import", student.Import(im, cfg.Import.MaxUploadBytes))
	router.HandleFunc("GET /api/students/eligibility", student.Eligibility(store))
	router.HandleFunc("POST /api/students", student.New(store, fx))
	router.HandleFunc("GET /api/students", student.GetList(store))
	router.HandleFunc("GET /api/students/{id}", student.GetByID(store))
	router.HandleFunc("PUT /api/students/{id}", student.Update(store, fx))
	router.HandleFunc("DELETE /api/students/{id}", student.Delete(store, fx))

	server := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	// ── 6. Start Server in a Goroutine ────────────────────────────────────
	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 7. Wait for Shutdown Signal ───────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-done
	log.Info("shutting down the server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
		return
	}

	log.Info("server stopped gracefully")
}

// openStorage picks the backend named by cfg.Driver.
func openStorage(cfg config.Storage) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.New(cfg)
	case config.DriverPostgres:
		return postgres.New(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// auditLogger returns the configured audit sink and whatever must be
// closed on shutdown.
func auditLogger(cfg config.Audit, store storage.Storage) (audit.Logger, io.Closer) {
	switch cfg.Sink {
	case config.AuditKafka:
		k := audit.NewKafkaLogger(audit.KafkaConfig{
			Broker:       cfg.KafkaBroker,
			Topic:        cfg.KafkaTopic,
			Username:     cfg.KafkaUsername,
			Password:     cfg.KafkaPassword,
			WriteTimeout: cfg.WriteTimeout,
		})
		return k, k
	case config.AuditNone:
		return audit.Nop{}, nopCloser{}
	default:
		return audit.NewStoreLogger(store), nopCloser{}
	}
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "staging":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
