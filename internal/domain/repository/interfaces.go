package repository

import (
	"context"
	"time"

	"CrowdedCOT/internal/domain/models"
)

// DataSource produces a table of weekly observations.
type DataSource interface {
	Kind() SourceKind
	Load(ctx context.Context) (*models.Table, error)
}

// Publisher ships latest per-contract signals to downstream consumers.
type Publisher interface {
	PublishSummaries(ctx context.Context, runID string, summaries []models.Summary) error
	Close() error
}

// Metrics records engine and loader activity.
type Metrics interface {
	RecordRun(source string, rowsIn, rowsOut int, d time.Duration)
	RecordError(kind string)
	RecordSummary(s models.Summary)
}
