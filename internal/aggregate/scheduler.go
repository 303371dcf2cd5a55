// Package aggregate owns the board's AggregateResult: it runs the analysis
// collaborators on a schedule or on demand and publishes each new result.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sujalbistaa/retroboard/internal/analysis"
	"github.com/sujalbistaa/retroboard/internal/models"
)

// ItemLister provides the point-in-time snapshot a run analyzes.
type ItemLister interface {
	ListItems(ctx context.Context) ([]models.Item, error)
}

// ResultStore persists the latest result across restarts.
type ResultStore interface {
	SaveAggregate(ctx context.Context, r models.AggregateResult) error
	LoadAggregate(ctx context.Context) (models.AggregateResult, bool, error)
}

// Publisher announces a newly published result.
type Publisher interface {
	AggregateUpdated(ctx context.Context, r models.AggregateResult)
}

// Config controls scheduling.
type Config struct {
	Interval     time.Duration
	InitialDelay time.Duration
	// Timeout bounds each collaborator call.
	Timeout time.Duration
}

// Slot holds the single current AggregateResult.
type Slot struct {
	mu     sync.RWMutex
	result models.AggregateResult
	ok     bool
}

// Load returns the current result and whether one has been published.
func (s *Slot) Load() (models.AggregateResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.ok
}

func (s *Slot) store(r models.AggregateResult) {
	s.mu.Lock()
	s.result, s.ok = r, true
	s.mu.Unlock()
}

// Scheduler runs at most one aggregation at a time.
type Scheduler struct {
	items      ItemLister
	results    ResultStore
	summarizer analysis.Summarizer
	renderer   analysis.ImageRenderer
	publisher  Publisher
	cfg        Config
	log        *slog.Logger
	now        func() time.Time

	slot    Slot
	running sync.Mutex
	trigger chan struct{}
}

// New creates a scheduler. results and publisher may be nil.
func New(
	items ItemLister,
	results ResultStore,
	summarizer analysis.Summarizer,
	renderer analysis.ImageRenderer,
	publisher Publisher,
	cfg Config,
	log *slog.Logger,
) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if renderer == nil {
		renderer = analysis.NoImage{}
	}
	return &Scheduler{
		items:      items,
		results:    results,
		summarizer: summarizer,
		renderer:   renderer,
		publisher:  publisher,
		cfg:        cfg,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		trigger:    make(chan struct{}, 1),
	}
}

// Current returns the latest published result.
func (s *Scheduler) Current() (models.AggregateResult, bool) {
	return s.slot.Load()
}

// Restore loads the persisted result into the slot without broadcasting it.
func (s *Scheduler) Restore(ctx context.Context) error {
	if s.results == nil {
		return nil
	}
	r, ok, err := s.results.LoadAggregate(ctx)
	if err != nil {
		return err
	}
	if ok {
		s.slot.store(r)
		s.log.Info("restored aggregate", slog.Time("generated_at", r.GeneratedAt))
	}
	return nil
}

// Trigger requests a run from the Run loop. While a run is in flight at
// most one request is kept pending; further ones are dropped and Trigger
// reports false.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunNow runs one aggregation in the caller's goroutine. It returns
// models.ErrRunInProgress instead of waiting when a run is in flight.
func (s *Scheduler) RunNow(ctx context.Context) (models.AggregateResult, error) {
	if !s.running.TryLock() {
		return models.AggregateResult{}, models.ErrRunInProgress
	}
	defer s.running.Unlock()
	return s.run(ctx)
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	initial := time.NewTimer(s.cfg.InitialDelay)
	ticker := time.NewTicker(s.cfg.Interval)
	defer initial.Stop()
	defer ticker.Stop()

	s.log.Info("aggregation scheduler running",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("initial_delay", s.cfg.InitialDelay))

	for {
		var reason string
		select {
		case <-ctx.Done():
			s.log.Info("aggregation scheduler stopped")
			return ctx.Err()
		case <-initial.C:
			reason = "initial"
		case <-ticker.C:
			reason = "interval"
		case <-s.trigger:
			reason = "trigger"
		}

		s.running.Lock()
		_, _ = s.runLogged(ctx, reason)
		s.running.Unlock()

		// A tick that fired during the run is stale.
		select {
		case <-ticker.C:
		default:
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context, reason string) (models.AggregateResult, error) {
	start := time.Now()
	r, err := s.run(ctx)
	if err != nil {
		// Failures keep the previous result and never stop the loop.
		s.log.Error("aggregation failed", slog.String("reason", reason), slog.Any("error", err))
		return r, err
	}
	s.log.Info("aggregation published",
		slog.String("reason", reason),
		slog.String("sentiment", r.Sentiment.Overall),
		slog.Bool("image", r.HasImage()),
		slog.Duration("took", time.Since(start)))
	return r, nil
}

func (s *Scheduler) run(ctx context.Context) (models.AggregateResult, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return models.AggregateResult{}, fmt.Errorf("snapshot: %w", err)
	}

	if len(items) == 0 {
		result := models.PlaceholderAggregate(s.now())
		s.publish(ctx, result)
		return result, nil
	}

	sctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	a, err := s.summarizer.Summarize(sctx, items)
	cancel()
	if err != nil {
		return models.AggregateResult{}, fmt.Errorf("summarize: %w", errors.Join(models.ErrCollaborator, err))
	}

	result := models.AggregateResult{
		Summary:   a.Summary,
		Sentiment: a.Sentiment.Normalize(),
	}

	if a.ImagePrompt != "" {
		ictx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		img, err := s.renderer.RenderImage(ictx, a.ImagePrompt)
		cancel()
		switch {
		case err != nil:
			s.log.Warn("vibe image failed, publishing without image",
				slog.String("stage", "render_image"), slog.Any("error", err))
		case img != nil && len(img.Data) > 0:
			result.VibeImage = img.Data
			result.VibeImageType = img.MIME
		}
	}

	result.GeneratedAt = s.now()
	s.publish(ctx, result)
	return result, nil
}

func (s *Scheduler) publish(ctx context.Context, r models.AggregateResult) {
	s.slot.store(r)

	if s.results != nil {
		if err := s.results.SaveAggregate(ctx, r); err != nil {
			s.log.Warn("persist aggregate", slog.Any("error", err))
		}
	}
	if s.publisher != nil {
		s.publisher.AggregateUpdated(ctx, r)
	}
}
