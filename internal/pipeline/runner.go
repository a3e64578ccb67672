package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-sync/internal/config"
	"github.com/maltedev/catalog-sync/internal/models"
	"github.com/maltedev/catalog-sync/internal/scraper"
	"github.com/maltedev/catalog-sync/internal/storage"
)

var ErrItemFailed = errors.New("item failed")

type Walker interface {
	Walk(ctx context.Context, fn scraper.BatchFunc) error
}

type Extractor interface {
	Extract(ctx context.Context, link string) (*models.ProductDetail, error)
}

type Publisher interface {
	Publish(ctx context.Context, item models.ListingItem, detail *models.ProductDetail) *models.ItemResult
}

// Recorder stores a history row for each published product.
type Recorder interface {
	Record(ctx context.Context, pub *models.Publication) error
}

// Recorders sends each publication to every recorder, even after one fails.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, pub *models.Publication) error {
	var errs []error
	for _, rec := range rs {
		if err := rec.Record(ctx, pub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats is a snapshot of a run's progress.
type Stats struct {
	RunID       uuid.UUID  `json:"run_id"`
	Running     bool       `json:"running"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	CurrentPage int        `json:"current_page"`
	Pages       int        `json:"pages"`
	Seen        int        `json:"seen"`
	Skipped     int        `json:"skipped"`
	Published   int        `json:"published"`
	Failed      int        `json:"failed"`
	LastError   string     `json:"last_error,omitempty"`
}

// Runner drives the crawl: every listing item not yet in the ledger is
// extracted and published, then recorded in the ledger.
type Runner struct {
	ledger    storage.Ledger
	walker    Walker
	extractor Extractor
	publisher Publisher
	recorder  Recorder
	policy    string
	logger    *slog.Logger

	mu    sync.RWMutex
	stats Stats
}

func NewRunner(ledger storage.Ledger, walker Walker, extractor Extractor, publisher Publisher, policy string, logger *slog.Logger) *Runner {
	if policy == "" {
		policy = config.PolicyStop
	}
	return &Runner{
		ledger:    ledger,
		walker:    walker,
		extractor: extractor,
		publisher: publisher,
		policy:    policy,
		logger:    logger.With("component", "runner"),
		stats:     Stats{RunID: uuid.New()},
	}
}

func (r *Runner) SetRecorder(rec Recorder) {
	r.recorder = rec
}

func (r *Runner) RunID() uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats.RunID
}

func (r *Runner) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.stats
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		s.FinishedAt = &t
	}
	return s
}

// Run walks the whole catalog. With the stop policy the first failed item
// ends the run with an error; with skip the item stays unmarked and the run
// continues.
func (r *Runner) Run(ctx context.Context) error {
	r.update(func(s *Stats) {
		s.Running = true
		s.StartedAt = time.Now()
	})

	r.logger.Info("run started", "run_id", r.RunID(), "failure_policy", r.policy)

	err := r.walker.Walk(ctx, r.processBatch)

	r.update(func(s *Stats) {
		now := time.Now()
		s.Running = false
		s.FinishedAt = &now
		if err != nil {
			s.LastError = err.Error()
		}
	})

	s := r.Stats()
	r.logger.Info("run finished",
		"run_id", s.RunID,
		"pages", s.Pages,
		"seen", s.Seen,
		"skipped", s.Skipped,
		"published", s.Published,
		"failed", s.Failed,
		"duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond),
	)

	return err
}

func (r *Runner) processBatch(ctx context.Context, page int, items []models.ListingItem) error {
	r.update(func(s *Stats) {
		s.CurrentPage = page
		s.Pages++
	})

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.update(func(s *Stats) { s.Seen++ })
		logger := r.logger.With("sku", item.SKU, "page", page)

		done, err := r.ledger.IsProcessed(ctx, item.SKU)
		if err != nil {
			return fmt.Errorf("failed to check ledger for %s: %w", item.SKU, err)
		}
		if done {
			r.update(func(s *Stats) { s.Skipped++ })
			logger.Debug("already processed")
			continue
		}

		result := r.processItem(ctx, item)
		if result.Failed() {
			r.update(func(s *Stats) {
				s.Failed++
				s.LastError = result.Err.Error()
			})
			logger.Error("item failed", "state", result.State, "error", result.Err)

			if r.policy == config.PolicySkip {
				continue
			}
			return fmt.Errorf("%w: %s: %w", ErrItemFailed, item.SKU, result.Err)
		}

		if err := r.ledger.MarkProcessed(ctx, item.SKU); err != nil {
			return fmt.Errorf("failed to record %s in ledger: %w", item.SKU, err)
		}
		result.State = models.StateProcessed
		r.update(func(s *Stats) { s.Published++ })

		logger.Info("item processed", "remote_id", result.RemoteID)

		r.record(ctx, result, logger)
	}

	return nil
}

func (r *Runner) processItem(ctx context.Context, item models.ListingItem) *models.ItemResult {
	detail, err := r.extractor.Extract(ctx, item.Link)
	if err != nil {
		return &models.ItemResult{SKU: item.SKU, State: models.StatePending, Err: err}
	}
	return r.publisher.Publish(ctx, item, detail)
}

func (r *Runner) record(ctx context.Context, result *models.ItemResult, logger *slog.Logger) {
	if r.recorder == nil || result.Product == nil {
		return
	}
	pub := models.NewPublication(r.RunID(), result.SKU, result.RemoteID, result.Product)
	if err := r.recorder.Record(ctx, pub); err != nil {
		logger.Warn("failed to record publication", "error", err)
	}
}

func (r *Runner) update(fn func(s *Stats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.stats)
}
