// Package main is the entry point for the hitokoto server.
//
// Usage:
//
//	hitokoto serve             - start the HTTP server
//	hitokoto seed              - import the sentences-bundle catalog
//	hitokoto version           - print version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hitokoto-go/hitokoto/internal/admission"
	"github.com/hitokoto-go/hitokoto/internal/observability"
	"github.com/hitokoto-go/hitokoto/internal/pool"
	"github.com/hitokoto-go/hitokoto/internal/seed"
	"github.com/hitokoto-go/hitokoto/internal/server"
	"github.com/hitokoto-go/hitokoto/internal/store"
)

const (
	version = "0.1.0"
	appName = "hitokoto"
)

// Config holds everything the components need; the core packages never read
// the environment themselves.
type Config struct {
	DSN       string
	Addr      string
	Workers   int
	MaxConns  int
	PoolWait  time.Duration
	UseMirror bool
	RateLimit float64 // requests/second, 0 disables admission control
	BundleURL string
	CacheDir  string
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch cmd := os.Args[1]; cmd {
	case "serve":
		runServe()
	case "seed":
		runSeed()
	case "version":
		fmt.Printf("%s v%s\n", appName, version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `%s v%s - random quote server

Usage:
  %s <command>

Commands:
  serve      Start the HTTP server
  seed       Import the sentences-bundle catalog into the database
  version    Print version

Environment variables:
  HITOKOTO_DB               Database DSN (postgres://... for Postgres,
                            anything else is a SQLite path; default: hitokoto.db)
  HITOKOTO_ADDR             Listen address (default: 0.0.0.0:8080)
  HITOKOTO_WORKERS          Worker count used for pool sizing (default: NumCPU)
  HITOKOTO_MAX_CONNECTIONS  Database pool size (default: 2*workers+1)
  HITOKOTO_POOL_WAIT        Max wait for a pool slot (default: 5s)
  HITOKOTO_MEMORY           "1"/"true" serves from a full in-memory mirror
  HITOKOTO_RATE_LIMIT       Admitted requests/second, 0 disables (default: 0)
  HITOKOTO_BUNDLE_URL       Catalog base URL for seeding
  HITOKOTO_CACHE_DIR        Seed download cache dir (default: cache)

`, appName, version, appName)
}

func loadConfig() Config {
	workers := envInt("HITOKOTO_WORKERS", runtime.NumCPU())
	return Config{
		DSN:       envStr("HITOKOTO_DB", "hitokoto.db"),
		Addr:      envStr("HITOKOTO_ADDR", "0.0.0.0:8080"),
		Workers:   workers,
		MaxConns:  envInt("HITOKOTO_MAX_CONNECTIONS", pool.DefaultSize(workers)),
		PoolWait:  envDuration("HITOKOTO_POOL_WAIT", 5*time.Second),
		UseMirror: envBool("HITOKOTO_MEMORY"),
		RateLimit: envFloat("HITOKOTO_RATE_LIMIT", 0),
		BundleURL: os.Getenv("HITOKOTO_BUNDLE_URL"),
		CacheDir:  envStr("HITOKOTO_CACHE_DIR", "cache"),
	}
}

// openStore picks the engine from the DSN, once, at startup.
func openStore(cfg Config) (store.Store, error) {
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		return store.NewPostgresStore(cfg.DSN, cfg.MaxConns)
	}
	return store.NewSQLiteStore(cfg.DSN, cfg.MaxConns)
}

func runServe() {
	log := observability.NewLogger(appName, nil)
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		log.Error("open store", "err", err)
		os.Exit(1)
	}
	if err := st.InitializeSchema(ctx); err != nil {
		log.Error("initialize schema", "err", err)
		os.Exit(1)
	}

	// The active backend is decided here and never changes for the process
	// lifetime.
	var backend store.Backend
	if cfg.UseMirror {
		mirror, err := store.LoadMirror(ctx, st)
		if err != nil {
			log.Error("load mirror", "err", err)
			os.Exit(1)
		}
		// The mirror owns a full copy; the durable store is no longer needed.
		st.Close()
		n, _ := mirror.Count(ctx)
		log.Info("memory mirror loaded", "quotes", n)
		backend = mirror
	} else {
		defer st.Close()
		backend = store.Guard(st, pool.New(cfg.MaxConns, cfg.PoolWait))
		n, err := backend.Count(ctx)
		if err != nil {
			log.Error("count quotes", "err", err)
			os.Exit(1)
		}
		log.Info("serving from durable store", "quotes", n, "max_connections", cfg.MaxConns)
	}

	admit := admission.Disabled()
	if cfg.RateLimit > 0 {
		admit = admission.New(cfg.RateLimit)
		log.Info("admission control enabled", "rate", cfg.RateLimit)
	}

	srv := server.New(cfg.Addr, backend, admit, log)
	if err := srv.Start(ctx); err != nil {
		log.Error("server", "err", err)
		os.Exit(1)
	}
}

func runSeed() {
	log := observability.NewLogger(appName, nil)
	cfg := loadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		log.Error("open store", "err", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.InitializeSchema(ctx); err != nil {
		log.Error("initialize schema", "err", err)
		os.Exit(1)
	}

	seeder := seed.New(st, seed.Config{BaseURL: cfg.BundleURL, CacheDir: cfg.CacheDir}, log)
	total, err := seeder.Run(ctx)
	if err != nil {
		log.Error("seed", "err", err, "inserted", total)
		os.Exit(1)
	}
	log.Info("seed complete", "inserted", total)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
