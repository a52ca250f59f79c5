package records

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/certops/insights/internal/fraud"
	"github.com/certops/insights/internal/ingest"
	"github.com/certops/insights/pkg/common"
	"github.com/certops/insights/pkg/logger"
)

// ErrNoBatches is returned when a query arrives before any file has been
// ingested.
var ErrNoBatches = common.NewAppError(http.StatusNotFound, "no batches have been ingested yet")

// ErrBatchNotFound is returned for an unknown batch id.
var ErrBatchNotFound = common.NewAppError(http.StatusNotFound, "batch not found")

// BatchSummary describes one completed ingestion run.
type BatchSummary struct {
	BatchID           string    `json:"batch_id"`
	IngestedAt        time.Time `json:"ingested_at"`
	TotalRecords      int       `json:"total_records"`
	SuspiciousRecords int       `json:"suspicious_records"`
	DataErrors        int       `json:"data_errors"`
}

type batchEntry struct {
	summary BatchSummary
	records []*ingest.Record
}

// Service runs the ingestion pipeline and retains the resulting batches in
// memory for the analytics endpoints. Records are stored only after both
// fraud passes complete, so readers never observe half-enriched flags.
type Service struct {
	parser   *ingest.Parser
	detector *fraud.Detector
	retain   int

	mu      sync.RWMutex
	batches map[string]*batchEntry
	order   []string // insertion order, oldest first
}

// NewService creates a batch service. retain caps how many batches stay
// queryable; older ones are evicted.
func NewService(parser *ingest.Parser, detector *fraud.Detector, retain int) *Service {
	if retain < 1 {
		retain = 1
	}
	return &Service{
		parser:   parser,
		detector: detector,
		retain:   retain,
		batches:  make(map[string]*batchEntry),
	}
}

// Ingest runs the full pipeline over one uploaded file: parse, fraud score,
// retain. Structural parse failures are returned unchanged; malformed rows
// never abort the batch.
func (s *Service) Ingest(ctx context.Context, raw string, progress ingest.ProgressFunc) (*BatchSummary, error) {
	parsed, err := s.parser.Parse(ctx, raw, progress)
	if err != nil {
		return nil, err
	}

	enriched := s.detector.Score(parsed)

	summary := BatchSummary{IngestedAt: time.Now(), TotalRecords: len(enriched)}
	if len(enriched) > 0 {
		summary.BatchID = enriched[0].BatchID
	}
	for _, record := range enriched {
		if record.IsSuspicious {
			summary.SuspiciousRecords++
		}
		if record.DataError {
			summary.DataErrors++
		}
	}

	s.store(summary, enriched)

	logger.WithContext(ctx).Info("batch ingested",
		zap.String("batch_id", summary.BatchID),
		zap.Int("records", summary.TotalRecords),
		zap.Int("suspicious", summary.SuspiciousRecords),
		zap.Int("data_errors", summary.DataErrors),
	)

	return &summary, nil
}

func (s *Service) store(summary BatchSummary, records []*ingest.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches[summary.BatchID] = &batchEntry{summary: summary, records: records}
	s.order = append(s.order, summary.BatchID)

	for len(s.order) > s.retain {
		evicted := s.order[0]
		s.order = s.order[1:]
		delete(s.batches, evicted)
	}
}

// Batch returns the enriched records of the given batch; an empty id means
// the most recently ingested one.
func (s *Service) Batch(batchID string) ([]*ingest.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if batchID == "" {
		if len(s.order) == 0 {
			return nil, ErrNoBatches
		}
		batchID = s.order[len(s.order)-1]
	}

	entry, ok := s.batches[batchID]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return entry.records, nil
}

// Summaries lists the retained batches, newest first.
func (s *Service) Summaries() []*BatchSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]*BatchSummary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		summary := s.batches[s.order[i]].summary
		summaries = append(summaries, &summary)
	}
	return summaries
}
