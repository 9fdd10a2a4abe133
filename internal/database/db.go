// Package database wires the process to MongoDB: connection lifecycle,
// collection handles, and the startup-time index set (spec §4.1).
//
// The shape here — a small DB struct owning the client, New(cfg)/Close(),
// a startup index step, HealthCheck — follows the teacher's
// internal/database/db.go, though the driver underneath is the Mongo
// driver rather than sqlite; see DESIGN.md for why.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config configures the Mongo connection.
type Config struct {
	URI    string
	DBName string
}

// DB owns the Mongo client and exposes the two collections every other
// component is built around.
type DB struct {
	client *mongo.Client
	name   string
	log    zerolog.Logger

	Imports     *mongo.Collection
	StockPrices *mongo.Collection
}

// New connects to Mongo and pings it with a bounded timeout, mirroring
// the teacher's connect-then-ping startup sequence.
func New(cfg Config, log zerolog.Logger) (*DB, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("database: MONGODB_URI is empty")
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("database: MONGODB_DB_NAME is empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	db := client.Database(cfg.DBName)
	return &DB{
		client:      client,
		name:        cfg.DBName,
		log:         log.With().Str("component", "database").Logger(),
		Imports:     db.Collection("imports"),
		StockPrices: db.Collection("stock_prices"),
	}, nil
}

// Close disconnects the client, releasing pooled connections.
func (d *DB) Close(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	return d.client.Disconnect(ctx)
}

// EnsureIndexes creates the index set required by spec §4.1. Mongo's
// createIndexes is idempotent by name, so this is safe to call on every
// startup.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	priceIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("symbol_date_unique"),
		},
		{
			Keys:    bson.D{{Key: "date", Value: 1}},
			Options: options.Index().SetName("date_asc"),
		},
		{
			Keys:    bson.D{{Key: "import_id", Value: 1}},
			Options: options.Index().SetName("import_id_lookup"),
		},
		{
			Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "security_name", Value: 1}},
			Options: options.Index().SetName("symbol_name_agg"),
		},
	}
	if _, err := d.StockPrices.Indexes().CreateMany(ctx, priceIndexes); err != nil {
		return fmt.Errorf("database: ensure stock_prices indexes: %w", err)
	}

	importIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "uploaded_at", Value: -1}},
			Options: options.Index().SetName("uploaded_at_desc"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("status_lookup"),
		},
	}
	if _, err := d.Imports.Indexes().CreateMany(ctx, importIndexes); err != nil {
		return fmt.Errorf("database: ensure imports indexes: %w", err)
	}

	d.log.Info().Msg("indexes ensured")
	return nil
}

// HealthCheck pings Mongo with a short deadline, used by GET /health/db.
func (d *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := d.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("database: health check: %w", err)
	}
	return nil
}
