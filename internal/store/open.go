package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"trading-agent/internal/monitor"
	"trading-agent/pkg/i18n"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string // auto | supabase | postgres | sqlite | none
	SupabaseURL string
	SupabaseKey string
	DatabaseURL string
	DBPath      string
	Timeout     time.Duration
}

// Open builds the gateway. "auto" picks supabase, then postgres, then sqlite,
// based on which settings are present. A backend that fails to open is
// logged and the gateway runs unconfigured, so trading never waits on storage.
func Open(ctx context.Context, opts Options, metrics *monitor.Metrics) *Gateway {
	backend, err := openBackend(ctx, opts)
	if err != nil {
		log.Printf(i18n.Get("StoreOpenFailed"), opts.Backend, err)
		backend = nil
	}
	gw := NewGateway(backend, opts.Timeout, metrics)
	log.Printf(i18n.Get("StoreBackend"), gw.BackendName())
	return gw
}

func openBackend(ctx context.Context, opts Options) (Backend, error) {
	kind := opts.Backend
	if kind == "" || kind == "auto" {
		switch {
		case opts.SupabaseURL != "" && opts.SupabaseKey != "":
			kind = "supabase"
		case opts.DatabaseURL != "":
			kind = "postgres"
		case opts.DBPath != "":
			kind = "sqlite"
		default:
			kind = "none"
		}
	}

	switch kind {
	case "none":
		return nil, nil
	case "supabase":
		if opts.SupabaseURL == "" || opts.SupabaseKey == "" {
			return nil, fmt.Errorf("supabase needs SUPABASE_URL and SUPABASE_KEY")
		}
		return NewSupabase(opts.SupabaseURL, opts.SupabaseKey, opts.Timeout), nil
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres needs DATABASE_URL")
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return OpenPostgres(ctx, opts.DatabaseURL)
	case "sqlite":
		if opts.DBPath == "" {
			return nil, fmt.Errorf("sqlite needs DB_PATH")
		}
		return OpenSQLite(opts.DBPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}
