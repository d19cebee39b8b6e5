package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Keys libpq and pgxpool understand; ORM-specific ones such as Prisma's
// schema parameter are dropped before parsing.
var supportedPGQueryKeys = map[string]struct{}{
	"application_name":         {},
	"channel_binding":          {},
	"client_encoding":          {},
	"connect_timeout":          {},
	"dbname":                   {},
	"gssencmode":               {},
	"host":                     {},
	"keepalives":               {},
	"keepalives_count":         {},
	"keepalives_idle":          {},
	"keepalives_interval":      {},
	"krbsrvname":               {},
	"options":                  {},
	"passfile":                 {},
	"password":                 {},
	"pool_health_check_period": {},
	"pool_max_conn_idle_time":  {},
	"pool_max_conn_lifetime":   {},
	"pool_max_conns":           {},
	"pool_min_conns":           {},
	"port":                     {},
	"service":                  {},
	"sslcert":                  {},
	"sslcrl":                   {},
	"sslkey":                   {},
	"sslmode":                  {},
	"sslpassword":              {},
	"sslrootcert":              {},
	"target_session_attrs":     {},
	"user":                     {},
}

const pingTimeout = 5 * time.Second

// Connect opens a pool and verifies it with a ping so misconfiguration
// fails at startup rather than on the first request.
func Connect(ctx context.Context, rawURL string) (*pgxpool.Pool, error) {
	normalized := normalizeDatabaseURL(rawURL)
	if normalized == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	cfg, err := pgxpool.ParseConfig(normalized)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func normalizeDatabaseURL(rawURL string) string {
	normalized := strings.TrimSpace(rawURL)
	for _, prefix := range []string{"prisma+postgres://", "postgresql+psycopg://", "postgresql://"} {
		if strings.HasPrefix(normalized, prefix) {
			normalized = "postgres://" + strings.TrimPrefix(normalized, prefix)
			break
		}
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return normalized
	}
	if parsed.Scheme != "postgres" {
		return normalized
	}

	filtered := make(url.Values)
	for key, values := range parsed.Query() {
		if _, ok := supportedPGQueryKeys[key]; ok {
			for _, v := range values {
				filtered.Add(key, v)
			}
		}
	}
	parsed.RawQuery = filtered.Encode()
	return parsed.String()
}
