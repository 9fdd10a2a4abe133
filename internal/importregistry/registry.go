// Package importregistry is the Import Registry (IR) — lifecycle
// tracking for ingestion jobs (spec §4.2). It owns ImportRecords
// exclusively.
//
// The crash-safe recovery sweep is grounded directly on
// original_source/app/backend/database.py's cleanup_orphaned_prices:
// delete any import stuck in a non-terminal status along with its
// prices, then delete any orphaned prices whose import_id no longer
// resolves to an import record.
package importregistry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nikolasl00/marketplai/internal/domain"
)

// PriceDeleter is the subset of the price store the registry needs for
// cascading deletes and the orphan sweep.
type PriceDeleter interface {
	DeleteByImport(ctx context.Context, importID string) (int64, error)
}

// Registry implements the Import Registry operations over a Mongo
// collection.
type Registry struct {
	imports *mongo.Collection
	prices  *mongo.Collection
	deleter PriceDeleter
	log     zerolog.Logger
}

// New builds a Registry. imports and prices are the raw collections (the
// latter needed only for the orphan sweep's distinct import_id scan);
// deleter performs the bulk price cascade.
func New(imports, prices *mongo.Collection, deleter PriceDeleter, log zerolog.Logger) *Registry {
	return &Registry{
		imports: imports,
		prices:  prices,
		deleter: deleter,
		log:     log.With().Str("component", "importregistry").Logger(),
	}
}

// Create inserts a new ImportRecord in status pending and returns its
// opaque id.
func (r *Registry) Create(ctx context.Context, filename string) (string, error) {
	id := uuid.NewString()
	rec := domain.ImportRecord{
		ID:         id,
		Filename:   filename,
		UploadedAt: time.Now().UTC(),
		Status:     domain.ImportPending,
	}
	if _, err := r.imports.InsertOne(ctx, rec); err != nil {
		return "", fmt.Errorf("importregistry: create: %w", err)
	}
	return id, nil
}

// Get returns the ImportRecord for id, or (nil, nil) if it doesn't exist.
func (r *Registry) Get(ctx context.Context, id string) (*domain.ImportRecord, error) {
	var rec domain.ImportRecord
	err := r.imports.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("importregistry: get: %w", err)
	}
	return &rec, nil
}

// List returns a page of ImportRecords sorted by uploaded_at desc, plus
// the total matching count.
func (r *Registry) List(ctx context.Context, skip, limit int64) ([]domain.ImportRecord, int64, error) {
	total, err := r.imports.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, fmt.Errorf("importregistry: count: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	cur, err := r.imports.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("importregistry: list: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.ImportRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("importregistry: decode list: %w", err)
	}
	return out, total, nil
}

// SetStatus transitions an import to a new status. Transitions not in
// the status machine (domain.CanTransition) are rejected.
func (r *Registry) SetStatus(ctx context.Context, id string, from, to domain.ImportStatus) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("importregistry: illegal transition %s -> %s", from, to)
	}
	_, err := r.imports.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: to}}}},
	)
	if err != nil {
		return fmt.Errorf("importregistry: set status: %w", err)
	}
	return nil
}

// Progress updates total_rows/processed_rows/symbols_count on an
// import. Any zero-value pointer is left unmodified.
func (r *Registry) Progress(ctx context.Context, id string, totalRows, processedRows, symbolsCount *int64) error {
	set := bson.D{}
	if totalRows != nil {
		set = append(set, bson.E{Key: "total_rows", Value: *totalRows})
	}
	if processedRows != nil {
		set = append(set, bson.E{Key: "processed_rows", Value: *processedRows})
	}
	if symbolsCount != nil {
		set = append(set, bson.E{Key: "symbols_count", Value: *symbolsCount})
	}
	if len(set) == 0 {
		return nil
	}
	_, err := r.imports.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("importregistry: progress update: %w", err)
	}
	return nil
}

// IncrementProcessedRows atomically adds delta to processed_rows.
func (r *Registry) IncrementProcessedRows(ctx context.Context, id string, delta int64) error {
	_, err := r.imports.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "processed_rows", Value: delta}}}},
	)
	if err != nil {
		return fmt.Errorf("importregistry: increment processed rows: %w", err)
	}
	return nil
}

// Fail marks an import failed with the given error message, recording
// partial progress as-is (spec §4.3 step 7 — no rollback).
func (r *Registry) Fail(ctx context.Context, id, errMsg string) error {
	_, err := r.imports.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: domain.ImportFailed}, {Key: "error", Value: errMsg}}}},
	)
	if err != nil {
		return fmt.Errorf("importregistry: fail: %w", err)
	}
	return nil
}

// Delete synchronously flips status to deleting and returns whether the
// record existed; the caller backgrounds the heavy cascade via
// CascadeDelete.
func (r *Registry) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.imports.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: domain.ImportDeleting}}}},
	)
	if err != nil {
		return false, fmt.Errorf("importregistry: delete: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// CascadeDelete removes every PriceRecord owned by id, then the
// ImportRecord itself. Called from the background after Delete flips
// the status.
func (r *Registry) CascadeDelete(ctx context.Context, id string) error {
	if _, err := r.deleter.DeleteByImport(ctx, id); err != nil {
		return fmt.Errorf("importregistry: cascade delete prices: %w", err)
	}
	if _, err := r.imports.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return fmt.Errorf("importregistry: cascade delete import: %w", err)
	}
	return nil
}

// RecoverOrphans runs the crash-safe recovery sweep once at startup,
// before any request is served (spec §4.2). It removes any import
// stuck in a non-terminal status along with its prices, then removes
// any PriceRecord whose import_id does not resolve to a surviving
// import.
func (r *Registry) RecoverOrphans(ctx context.Context) error {
	cur, err := r.imports.Find(ctx, bson.D{{Key: "status", Value: bson.D{
		{Key: "$in", Value: []domain.ImportStatus{domain.ImportPending, domain.ImportProcessing, domain.ImportDeleting}},
	}}})
	if err != nil {
		return fmt.Errorf("importregistry: recover orphans: find stuck: %w", err)
	}
	var stuck []domain.ImportRecord
	if err := cur.All(ctx, &stuck); err != nil {
		return fmt.Errorf("importregistry: recover orphans: decode stuck: %w", err)
	}

	for _, rec := range stuck {
		if _, err := r.deleter.DeleteByImport(ctx, rec.ID); err != nil {
			return fmt.Errorf("importregistry: recover orphans: delete prices for %s: %w", rec.ID, err)
		}
		if _, err := r.imports.DeleteOne(ctx, bson.D{{Key: "_id", Value: rec.ID}}); err != nil {
			return fmt.Errorf("importregistry: recover orphans: delete import %s: %w", rec.ID, err)
		}
		r.log.Warn().Str("import_id", rec.ID).Str("status", string(rec.Status)).Msg("removed orphaned import at startup")
	}

	importIDs, err := r.prices.Distinct(ctx, "import_id", bson.D{})
	if err != nil {
		return fmt.Errorf("importregistry: recover orphans: distinct import_id: %w", err)
	}
	for _, v := range importIDs {
		importID, ok := v.(string)
		if !ok || importID == "" {
			continue
		}
		count, err := r.imports.CountDocuments(ctx, bson.D{{Key: "_id", Value: importID}})
		if err != nil {
			return fmt.Errorf("importregistry: recover orphans: check import %s: %w", importID, err)
		}
		if count == 0 {
			if _, err := r.deleter.DeleteByImport(ctx, importID); err != nil {
				return fmt.Errorf("importregistry: recover orphans: delete orphan prices for %s: %w", importID, err)
			}
			r.log.Warn().Str("import_id", importID).Msg("removed orphaned price records at startup")
		}
	}

	return nil
}
