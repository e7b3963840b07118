// Package database opens connections to the configured backend.
package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bookq/internal/book"
	"bookq/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const pingTimeout = 2 * time.Second

// ErrUnknownBackend is returned by OpenStore for a backend name it cannot open.
var ErrUnknownBackend = errors.New("unknown backend")

// OpenPostgres creates a pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot ping database (%s): %w", RedactDSN(dsn), err)
	}
	log.Printf("database connection OK backend=postgres dsn=%s", RedactDSN(dsn))
	return pool, nil
}

// OpenMongo connects a client and verifies it against the primary.
func OpenMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot create mongo client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("cannot ping mongo (%s): %w", RedactDSN(uri), err)
	}
	log.Printf("database connection OK backend=mongo uri=%s", RedactDSN(uri))
	return client, nil
}

// OpenStore returns the book.Store for cfg.Backend. Callers own Close.
func OpenStore(ctx context.Context, cfg config.Config) (book.Store, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		client, err := OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		return book.NewMongoRepo(client, cfg.MongoDatabase, cfg.Collection, cfg.QueryTimeout), nil
	case config.BackendPostgres:
		pool, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return book.NewPostgresRepo(pool, cfg.QueryTimeout), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
	}
}

// RedactDSN hides the credentials in a connection string.
func RedactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.LastIndex(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
