// Package ingestion is the Ingestion Pipeline (IP) — streaming, chunked
// parse/validate/transform/bulk-insert of a CSV file, run as a detached
// background task (spec §4.3).
//
// Grounded on other_examples' Mrhb33-backtest data-ingest main.go for
// the encoding/csv streaming-chunk-batch-insert shape (batches,
// per-row parse/validate/append, batch insert at a threshold);
// exact column/coercion semantics follow
// original_source/app/backend/services/csv_processor.py and
// import_service.py.
package ingestion

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nikolasl00/marketplai/internal/domain"
)

// expectedHeader is the canonical CSV header (spec §6 "Input file
// format"), compared after whitespace-trimming each column.
var expectedHeader = []string{
	"Symbol", "Security Name", "Date", "Open", "High", "Low", "Close", "Adj Close", "Volume",
}

// symbolsCountInterval is the "every Nth chunk" cadence for recomputing
// symbols_count (spec §4.3 step 4, N=10).
const symbolsCountInterval = 10

// PriceInserter is the price-store surface the pipeline needs.
type PriceInserter interface {
	InsertMany(ctx context.Context, records []domain.PriceRecord) (int, error)
	DeleteByImport(ctx context.Context, importID string) (int64, error)
	DistinctSymbolsForImport(ctx context.Context, importID string) ([]string, error)
}

// ImportTracker is the import-registry surface the pipeline needs.
type ImportTracker interface {
	Get(ctx context.Context, id string) (*domain.ImportRecord, error)
	SetStatus(ctx context.Context, id string, from, to domain.ImportStatus) error
	Progress(ctx context.Context, id string, totalRows, processedRows, symbolsCount *int64) error
	IncrementProcessedRows(ctx context.Context, id string, delta int64) error
	Fail(ctx context.Context, id, errMsg string) error
}

// SymbolIndexInvalidator is the cache surface the pipeline invalidates
// on completion, deletion, or cancellation.
type SymbolIndexInvalidator interface {
	Invalidate()
}

// Pipeline runs CSV imports.
type Pipeline struct {
	prices    PriceInserter
	imports   ImportTracker
	cache     SymbolIndexInvalidator
	chunkSize int
	log       zerolog.Logger
}

// New builds a Pipeline. chunkSize is the configured CSV_CHUNK_SIZE,
// defaulting to the spec's 10,000 if zero or negative.
func New(prices PriceInserter, imports ImportTracker, cache SymbolIndexInvalidator, chunkSize int, log zerolog.Logger) *Pipeline {
	if chunkSize <= 0 {
		chunkSize = 10000
	}
	return &Pipeline{
		prices:    prices,
		imports:   imports,
		cache:     cache,
		chunkSize: chunkSize,
		log:       log.With().Str("component", "ingestion").Logger(),
	}
}

// Run executes the full contract of spec §4.3 against filePath for
// importID, reporting chunk progress through reporter (may be nil).
// The temp file at filePath is removed on every exit path.
func (p *Pipeline) Run(ctx context.Context, filePath, importID string, reporter *ProgressReporter) {
	defer os.Remove(filePath)

	log := p.log.With().Str("import_id", importID).Logger()

	if err := p.imports.SetStatus(ctx, importID, domain.ImportPending, domain.ImportProcessing); err != nil {
		log.Error().Err(err).Msg("failed to mark import processing")
		_ = p.imports.Fail(ctx, importID, err.Error())
		reporter.Failed(err)
		return
	}

	totalRows, err := countDataRows(filePath)
	if err != nil {
		p.fail(ctx, importID, reporter, err)
		return
	}
	if err := p.imports.Progress(ctx, importID, &totalRows, nil, nil); err != nil {
		p.fail(ctx, importID, reporter, err)
		return
	}

	if err := p.processChunks(ctx, filePath, importID, totalRows, reporter); err != nil {
		if err == errCancelled {
			return
		}
		p.fail(ctx, importID, reporter, err)
		return
	}

	cancelled, err := p.checkCancellation(ctx, importID)
	if err != nil {
		p.fail(ctx, importID, reporter, err)
		return
	}
	if cancelled {
		return
	}

	symbols, err := p.prices.DistinctSymbolsForImport(ctx, importID)
	if err != nil {
		p.fail(ctx, importID, reporter, err)
		return
	}
	finalCount := int64(len(symbols))
	if err := p.imports.Progress(ctx, importID, nil, nil, &finalCount); err != nil {
		p.fail(ctx, importID, reporter, err)
		return
	}
	if err := p.imports.SetStatus(ctx, importID, domain.ImportProcessing, domain.ImportCompleted); err != nil {
		p.fail(ctx, importID, reporter, err)
		return
	}
	p.cache.Invalidate()
	reporter.Completed()
	log.Info().Msg("import completed")
}

var errCancelled = fmt.Errorf("ingestion: cancelled")

func (p *Pipeline) fail(ctx context.Context, importID string, reporter *ProgressReporter, err error) {
	p.log.Error().Err(err).Str("import_id", importID).Msg("import failed")
	_ = p.imports.Fail(ctx, importID, err.Error())
	reporter.Failed(err)
}

// checkCancellation re-reads the ImportRecord; if it is missing or
// deleting, it performs the cancellation cleanup and returns true
// (spec §4.3 step 4 "cancellation point").
func (p *Pipeline) checkCancellation(ctx context.Context, importID string) (bool, error) {
	rec, err := p.imports.Get(ctx, importID)
	if err != nil {
		return false, err
	}
	if rec == nil || rec.Status == domain.ImportDeleting {
		if _, err := p.prices.DeleteByImport(ctx, importID); err != nil {
			return false, err
		}
		p.cache.Invalidate()
		return true, nil
	}
	return false, nil
}

// processChunks streams filePath in chunkSize-row chunks, applying the
// per-chunk contract from spec §4.3 step 4.
func (p *Pipeline) processChunks(ctx context.Context, filePath, importID string, totalRows int64, reporter *ProgressReporter) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("ingestion: open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("ingestion: read header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return err
	}

	var processedRows int64
	chunkIndex := 0

	for {
		cancelled, err := p.checkCancellation(ctx, importID)
		if err != nil {
			return err
		}
		if cancelled {
			return errCancelled
		}

		rows, readErr := readChunk(reader, p.chunkSize)
		if len(rows) == 0 {
			if readErr == io.EOF || readErr == nil {
				return nil
			}
			return fmt.Errorf("ingestion: read chunk: %w", readErr)
		}

		records := transformChunk(rows, header, importID)
		inserted, err := p.prices.InsertMany(ctx, records)
		if err != nil {
			return fmt.Errorf("ingestion: bulk insert: %w", err)
		}

		processedRows += int64(inserted)
		if err := p.imports.IncrementProcessedRows(ctx, importID, int64(inserted)); err != nil {
			return err
		}
		reporter.Report(processedRows, totalRows, "ingesting")

		chunkIndex++
		if chunkIndex%symbolsCountInterval == 0 {
			symbols, err := p.prices.DistinctSymbolsForImport(ctx, importID)
			if err != nil {
				return err
			}
			count := int64(len(symbols))
			if err := p.imports.Progress(ctx, importID, nil, nil, &count); err != nil {
				return err
			}
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("ingestion: read chunk: %w", readErr)
		}
	}
}

// readChunk reads up to n data rows from reader. It returns the rows
// read so far alongside io.EOF when the file ends mid-chunk.
func readChunk(reader *csv.Reader, n int) ([][]string, error) {
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row, err := reader.Read()
		if err == io.EOF {
			return rows, io.EOF
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// countDataRows does a single newline-scan pass to count data rows
// (total lines minus the header), matching
// csv_processor.py::_count_csv_rows.
func countDataRows(filePath string) (int64, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("ingestion: count rows: %w", err)
	}
	defer f.Close()

	var count int64
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				count++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("ingestion: count rows: %w", err)
		}
	}
	if count == 0 {
		return 0, nil
	}
	return count - 1, nil
}

func validateHeader(header []string) error {
	trimmed := make([]string, len(header))
	for i, h := range header {
		trimmed[i] = strings.TrimSpace(h)
	}
	if len(trimmed) != len(expectedHeader) {
		return fmt.Errorf("ingestion: unexpected header column count: got %d, want %d", len(trimmed), len(expectedHeader))
	}
	for i, want := range expectedHeader {
		if trimmed[i] != want {
			return fmt.Errorf("ingestion: unexpected header column %d: got %q, want %q", i, trimmed[i], want)
		}
	}
	return nil
}

const floatSentinel = math.MaxFloat64

// transformChunk applies spec §4.3's rename/parse/coerce/strip rules
// and drops rows missing date, close, or adj_close.
func transformChunk(rows [][]string, header []string, importID string) []domain.PriceRecord {
	out := make([]domain.PriceRecord, 0, len(rows))
	for _, row := range rows {
		rec, ok := transformRow(row, importID)
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

func transformRow(row []string, importID string) (domain.PriceRecord, bool) {
	if len(row) < len(expectedHeader) {
		return domain.PriceRecord{}, false
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(row[2]))
	if err != nil {
		return domain.PriceRecord{}, false
	}

	open := parseFloat(row[3])
	high := parseFloat(row[4])
	low := parseFloat(row[5])
	close := parseFloat(row[6])
	adjClose := parseFloat(row[7])
	if close == floatSentinel || adjClose == floatSentinel {
		return domain.PriceRecord{}, false
	}

	volume := parseVolume(row[8])

	return domain.PriceRecord{
		Symbol:       strings.TrimSpace(row[0]),
		SecurityName: strings.TrimSpace(row[1]),
		Date:         date,
		Open:         open,
		High:         high,
		Low:          low,
		Close:        close,
		AdjClose:     adjClose,
		Volume:       volume,
		ImportID:     importID,
	}, true
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return floatSentinel
	}
	return v
}

func parseVolume(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
