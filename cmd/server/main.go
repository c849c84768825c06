// Command server exposes the legalgraph engine over HTTP.
//
//	go run -tags sqlite_fts5 ./cmd/server -config config.json
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/brunobiangulo/legalgraph"
)

// serverConfig holds the HTTP settings; engine settings live in
// legalgraph.Config.
type serverConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	APIKey          string        `env:"API_KEY"`
	CORSOrigins     string        `env:"CORS_ORIGINS"`
	UploadDir       string        `env:"UPLOAD_DIR"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	dotenv := flag.String("env", "", "Path to .env file (default: ./.env when present)")
	addr := flag.String("addr", "", "Listen address (overrides LEGALGRAPH_ADDR)")
	flag.Parse()

	cfg, err := legalgraph.LoadConfig(*configPath, *dotenv)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	var sc serverConfig
	if err := env.ParseWithOptions(&sc, env.Options{Prefix: legalgraph.EnvPrefix}); err != nil {
		slog.Error("parsing server environment", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		sc.Addr = *addr
	}
	if sc.UploadDir == "" {
		sc.UploadDir = os.TempDir()
	}

	engine, err := legalgraph.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:         sc.Addr,
		Handler:      newServer(engine, sc),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // builds can run for a long time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", sc.Addr, "auth", sc.APIKey != "")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// newServer builds the route table wrapped in the middleware chain.
func newServer(e legalgraph.Engine, sc serverConfig) http.Handler {
	h := newHandler(e, sc.UploadDir)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sources", h.handleIngest)
	mux.HandleFunc("GET /sources", h.handleListSources)
	mux.HandleFunc("POST /sources/{id}/build", h.handleBuild)
	mux.HandleFunc("POST /laws/seed", h.handleSeed)
	mux.HandleFunc("GET /laws", h.handleListLaws)
	mux.HandleFunc("GET /laws/{id}", h.handleGetLaw)
	mux.HandleFunc("GET /laws/{id}/related", h.handleRelated)
	mux.HandleFunc("DELETE /laws/{id}", h.handleDeleteLaw)
	mux.HandleFunc("GET /search", h.handleSearch)
	mux.HandleFunc("GET /similar", h.handleSimilar)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(sc.APIKey, handler)
	handler = corsMiddleware(sc.CORSOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}
