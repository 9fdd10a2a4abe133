package server

import (
	"context"

	"github.com/nikolasl00/marketplai/internal/importregistry"
	"github.com/nikolasl00/marketplai/internal/ingestion"
	"github.com/nikolasl00/marketplai/internal/pricestore"
	"github.com/nikolasl00/marketplai/internal/symbolindex"
)

// healthChecker is the subset of *database.DB used by GET /health/db.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies bundles every component the HTTP surface wires into
// handlers. Built once in cmd/server/main.go.
type Dependencies struct {
	DB       healthChecker
	Prices   *pricestore.Store
	Imports  *importregistry.Registry
	Cache    *symbolindex.Cache
	Pipeline *ingestion.Pipeline
	Executor *ingestion.Executor
	Bus      *ingestion.Bus
}
