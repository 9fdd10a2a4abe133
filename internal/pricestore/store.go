// Package pricestore is the Price Store (PS) — persistence and queries
// for PriceRecords (spec §4.1). It owns PriceRecords exclusively; every
// other component reaches the collection only through this package.
//
// Grounded on original_source/app/backend/database.py for the index
// choice and the $group/$first aggregation shape, translated into the
// Go driver's bson.D/aggregation-pipeline idiom; the method-per-operation
// shape follows the teacher's repository-style handlers (e.g.
// internal/modules/historical/handlers/handlers.go calling into a
// HistoryDB).
package pricestore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nikolasl00/marketplai/internal/domain"
	"github.com/nikolasl00/marketplai/internal/symbolindex"
)

// Store implements the Price Store operations over a Mongo collection.
type Store struct {
	coll *mongo.Collection
	log  zerolog.Logger
}

// New builds a Store over the given collection.
func New(coll *mongo.Collection, log zerolog.Logger) *Store {
	return &Store{coll: coll, log: log.With().Str("component", "pricestore").Logger()}
}

// InsertMany attempts a bulk insert, silently skipping rows that
// violate the (symbol, date) uniqueness key, and returns the count
// actually inserted (spec §4.1).
func (s *Store) InsertMany(ctx context.Context, records []domain.PriceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, len(records))
	for i, r := range records {
		docs[i] = r
	}

	opts := options.InsertMany().SetOrdered(false)
	res, err := s.coll.InsertMany(ctx, docs, opts)
	if res != nil {
		inserted := len(res.InsertedIDs)
		if err == nil {
			return inserted, nil
		}
		if mongo.IsDuplicateKeyError(err) {
			return inserted, nil
		}
		return inserted, fmt.Errorf("pricestore: insert many: %w", err)
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("pricestore: insert many: %w", err)
	}
	return 0, nil
}

// DeleteByImport removes all PriceRecords produced by an ingestion; it
// is idempotent (deleting an import with no remaining records succeeds
// with a zero count).
func (s *Store) DeleteByImport(ctx context.Context, importID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{{Key: "import_id", Value: importID}})
	if err != nil {
		return 0, fmt.Errorf("pricestore: delete by import: %w", err)
	}
	return res.DeletedCount, nil
}

// RangeProjection selects which fields FindRange returns and, optionally,
// a page of the matching result (spec §6 "GET /api/stock-prices"). Skip
// and Limit are applied at the Mongo cursor via options.Find().SetSkip/
// SetLimit, not in application memory; a zero Limit means unbounded.
type RangeProjection struct {
	DateAndAdjCloseOnly bool
	Skip                int64
	Limit               int64
}

// FindRange returns PriceRecords for symbol in [from, to], ascending by
// date. When projection.DateAndAdjCloseOnly is set, only Date and
// AdjClose are populated (the shape the backtest engine's price
// preparation needs). When projection.Limit is set, the page is pushed
// to the cursor rather than materialized in full and sliced afterward.
func (s *Store) FindRange(ctx context.Context, symbol string, from, to time.Time, projection RangeProjection) ([]domain.PriceRecord, error) {
	filter := bson.D{
		{Key: "date", Value: bson.D{{Key: "$gte", Value: from}, {Key: "$lte", Value: to}}},
	}
	if symbol != "" {
		filter = append(bson.D{{Key: "symbol", Value: symbol}}, filter...)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	if projection.DateAndAdjCloseOnly {
		findOpts.SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: "date", Value: 1}, {Key: "adj_close", Value: 1}})
	}
	if projection.Skip > 0 {
		findOpts.SetSkip(projection.Skip)
	}
	if projection.Limit > 0 {
		findOpts.SetLimit(projection.Limit)
	}

	cur, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("pricestore: find range: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.PriceRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("pricestore: decode range: %w", err)
	}
	return out, nil
}

// CountFilter selects which records CountByFilter counts; a zero-value
// CountFilter counts the whole collection using a fast estimated count.
type CountFilter struct {
	Symbol   string
	DateFrom *time.Time
	DateTo   *time.Time
}

func (f CountFilter) empty() bool {
	return f.Symbol == "" && f.DateFrom == nil && f.DateTo == nil
}

func (f CountFilter) toBSON() bson.D {
	filter := bson.D{}
	if f.Symbol != "" {
		filter = append(filter, bson.E{Key: "symbol", Value: f.Symbol})
	}
	if f.DateFrom != nil || f.DateTo != nil {
		dateFilter := bson.D{}
		if f.DateFrom != nil {
			dateFilter = append(dateFilter, bson.E{Key: "$gte", Value: *f.DateFrom})
		}
		if f.DateTo != nil {
			dateFilter = append(dateFilter, bson.E{Key: "$lte", Value: *f.DateTo})
		}
		filter = append(filter, bson.E{Key: "date", Value: dateFilter})
	}
	return filter
}

// CountByFilter returns an exact count for a filtered query, or a fast
// estimated (metadata-derived) count when the filter is empty.
func (s *Store) CountByFilter(ctx context.Context, filter CountFilter) (int64, error) {
	if filter.empty() {
		count, err := s.coll.EstimatedDocumentCount(ctx)
		if err != nil {
			return 0, fmt.Errorf("pricestore: estimated count: %w", err)
		}
		return count, nil
	}
	count, err := s.coll.CountDocuments(ctx, filter.toBSON())
	if err != nil {
		return 0, fmt.Errorf("pricestore: count documents: %w", err)
	}
	return count, nil
}

// symbolGroupResult mirrors the $group/$first aggregation's output
// shape used by DistinctSymbols.
type symbolGroupResult struct {
	ID           string `bson:"_id"`
	SecurityName string `bson:"security_name"`
	Count        int64  `bson:"count"`
}

// DistinctSymbols aggregates every distinct symbol with its first-seen
// security_name and record count. It is this store's only aggregation
// pipeline heavy enough to need allowDiskUse, a performance hint only
// (spec §9).
func (s *Store) DistinctSymbols(ctx context.Context) ([]symbolindex.Entry, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "date", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$symbol"},
			{Key: "security_name", Value: bson.D{{Key: "$first", Value: "$security_name"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cur, err := s.coll.Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, fmt.Errorf("pricestore: distinct symbols: %w", err)
	}
	defer cur.Close(ctx)

	var rows []symbolGroupResult
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("pricestore: decode distinct symbols: %w", err)
	}

	out := make([]symbolindex.Entry, len(rows))
	for i, r := range rows {
		out[i] = symbolindex.Entry{Symbol: r.ID, SecurityName: r.SecurityName, Count: r.Count}
	}
	return out, nil
}

// DistinctSymbolsForImport returns the distinct symbol values owned by
// an import_id, used by the ingestion pipeline to recompute
// symbols_count (spec §4.3 step 4).
func (s *Store) DistinctSymbolsForImport(ctx context.Context, importID string) ([]string, error) {
	raw, err := s.coll.Distinct(ctx, "symbol", bson.D{{Key: "import_id", Value: importID}})
	if err != nil {
		return nil, fmt.Errorf("pricestore: distinct symbols for import: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if sym, ok := v.(string); ok {
			out = append(out, sym)
		}
	}
	return out, nil
}

// FindFirstNonEmpty does a best-effort single-record lookup for a
// non-empty security_name for symbol, used for display metadata. A
// caller-supplied date window is preferred; if no match falls in the
// window, the first record for the symbol overall is returned.
func (s *Store) FindFirstNonEmpty(ctx context.Context, symbol string, from, to *time.Time) (string, bool) {
	filter := bson.D{
		{Key: "symbol", Value: symbol},
		{Key: "security_name", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: ""}}},
	}
	if from != nil && to != nil {
		windowed := append(bson.D{}, filter...)
		windowed = append(windowed, bson.E{Key: "date", Value: bson.D{{Key: "$gte", Value: *from}, {Key: "$lte", Value: *to}}})
		if name, ok := s.findOneSecurityName(ctx, windowed); ok {
			return name, true
		}
	}
	return s.findOneSecurityName(ctx, filter)
}

// DateRange reports the earliest date, latest date, and record count for
// symbol, used by GET /api/backtest/symbols/{symbol}/date-range. ok is
// false when the symbol has no records.
func (s *Store) DateRange(ctx context.Context, symbol string) (min, max time.Time, count int64, ok bool, err error) {
	filter := bson.D{{Key: "symbol", Value: symbol}}

	count, err = s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return min, max, 0, false, fmt.Errorf("pricestore: count for date range: %w", err)
	}
	if count == 0 {
		return min, max, 0, false, nil
	}

	var first, last domain.PriceRecord
	if err = s.coll.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "date", Value: 1}})).Decode(&first); err != nil {
		return min, max, 0, false, fmt.Errorf("pricestore: min date: %w", err)
	}
	if err = s.coll.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}})).Decode(&last); err != nil {
		return min, max, 0, false, fmt.Errorf("pricestore: max date: %w", err)
	}
	return first.Date, last.Date, count, true, nil
}

func (s *Store) findOneSecurityName(ctx context.Context, filter bson.D) (string, bool) {
	opts := options.FindOne().SetSort(bson.D{{Key: "date", Value: 1}})
	var rec domain.PriceRecord
	if err := s.coll.FindOne(ctx, filter, opts).Decode(&rec); err != nil {
		return "", false
	}
	return rec.SecurityName, true
}
