package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/micielski/filmweb-export/internal/utils"
	"github.com/micielski/filmweb-export/pkg/filmweb"
)

// ErrNoProgress means the queue drained without a single record landing:
// every page the run attempted was given up on. Writing empty CSV files for
// that would look like an empty account, so it fails the run instead.
var ErrNoProgress = errors.New("no pages could be fetched")

// Source is what a worker needs from the site: fetch one list page, fetch
// the vote details behind one rated title. filmweb.Client satisfies it.
type Source interface {
	FetchPage(ctx context.Context, item filmweb.WorkItem) (string, error)
	FetchVoteDetails(ctx context.Context, kind filmweb.MediaKind, titleID int) (filmweb.VoteDetails, error)
}

const (
	// DefaultWorkers is deliberately conservative. The site answers more
	// concurrent requests with silently shortened pages, not with errors, so
	// the worker count is a safety knob first and a throughput knob second.
	DefaultWorkers = 6
	MaxWorkers     = 6

	defaultMaxAttempts = 3
	defaultRetryBase   = 250 * time.Millisecond
	defaultRPS         = 4
)

// Config controls one scheduler run. Zero values fall back to the defaults
// above.
type Config struct {
	Workers           int
	RequestsPerSecond float64
	MaxAttempts       int
	RetryBase         time.Duration
	Quiet             bool
	Out               io.Writer
}

// Scheduler drains a FIFO queue of (category, page) work items with a fixed
// pool of workers. Discovered follow-up pages feed back into the queue;
// parsed records flow into the aggregator. The run ends when the queue is
// empty and no worker holds in-flight work, or immediately once the session
// turns out to be dead.
type Scheduler struct {
	source  Source
	agg     *Aggregator
	cfg     Config
	limiter *rate.Limiter

	queue    chan filmweb.WorkItem
	pending  int64
	degraded int64

	cancel    context.CancelFunc
	fatalOnce sync.Once
	fatalErr  error
}

func NewScheduler(source Source, agg *Aggregator, cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Workers > MaxWorkers {
		cfg.Workers = MaxWorkers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRPS
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Scheduler{
		source:  source,
		agg:     agg,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// Degraded reports how many pages were given up on after retries or parse
// failures. Their titles are missing from the output.
func (s *Scheduler) Degraded() int64 {
	return atomic.LoadInt64(&s.degraded)
}

// Run blocks until every category is exhausted or the run dies. The only
// errors it returns are fatal ones: an expired session, a cancelled context,
// or a queue exhausted with zero progress. Degraded pages have already been
// warned about and do not fail a run that still collected something.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel

	seeds := filmweb.SeedItems()
	// A processed item enqueues at most one successor, so the queue can
	// never hold more than the seeds plus one item per worker.
	s.queue = make(chan filmweb.WorkItem, len(seeds)+s.cfg.Workers)
	atomic.StoreInt64(&s.pending, int64(len(seeds)))
	for _, item := range seeds {
		s.queue <- item
	}

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx)
		}()
	}
	wg.Wait()

	if s.fatalErr != nil {
		return s.fatalErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Degraded() > 0 && s.agg.Len() == 0 {
		return ErrNoProgress
	}
	return nil
}

func (s *Scheduler) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-s.queue:
			if !ok {
				return
			}
			s.process(ctx, item)
			if atomic.AddInt64(&s.pending, -1) == 0 {
				close(s.queue)
			}
		}
	}
}

func (s *Scheduler) fail(err error) {
	s.fatalOnce.Do(func() {
		s.fatalErr = err
		s.cancel()
	})
}

func (s *Scheduler) process(ctx context.Context, item filmweb.WorkItem) {
	var body string
	err := s.withRetry(ctx, fmt.Sprintf("%s page %d", item.Category, item.Page), func() error {
		var ferr error
		body, ferr = s.source.FetchPage(ctx, item)
		return ferr
	})
	switch {
	case err == nil:
	case errors.Is(err, filmweb.ErrNotFound):
		// Past the last page; normal terminator.
		return
	case errors.Is(err, filmweb.ErrAuthExpired):
		s.fail(fmt.Errorf("%w (while fetching %s page %d)", filmweb.ErrAuthExpired, item.Category, item.Page))
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return
	default:
		atomic.AddInt64(&s.degraded, 1)
		utils.Log.Warn("Giving up on ", item.Category, " page ", item.Page, " after retries, its titles will be missing: ", err)
		return
	}

	result, err := filmweb.ParsePage(item.Category, body)
	if err != nil {
		atomic.AddInt64(&s.degraded, 1)
		utils.Log.Warn("Could not parse ", item.Category, " page ", item.Page, ", its titles will be missing: ", err)
		return
	}

	for _, title := range result.Titles {
		if ctx.Err() != nil {
			return
		}
		rec, ok := s.buildRecord(ctx, item.Category, title)
		if !ok {
			return
		}
		s.agg.Ingest(rec)
		s.printTitle(rec)
	}

	if next, ok := filmweb.NextItem(item, result.HasNextPage); ok {
		atomic.AddInt64(&s.pending, 1)
		select {
		case s.queue <- next:
		case <-ctx.Done():
			atomic.AddInt64(&s.pending, -1)
		}
	}
}

// buildRecord turns a scraped title into a rating record, attaching the
// category's signal. Rated categories need one extra round trip for the vote
// details; a details failure degrades that single title to rating-absent
// rather than dropping it. The bool result is false only on fatal errors.
func (s *Scheduler) buildRecord(ctx context.Context, category filmweb.Category, title filmweb.Title) (RatingRecord, bool) {
	rec := RatingRecord{
		ExternalID: title.ID,
		Title:      title.Name,
		URL:        title.URL,
		Kind:       title.Kind,
		Year:       title.Year,
	}

	switch category {
	case filmweb.CategoryFavorites:
		rec.Favorited = true
	case filmweb.CategoryWantsToSee:
		rec.Watchlisted = true
	default:
		var details filmweb.VoteDetails
		err := s.withRetry(ctx, fmt.Sprintf("vote details for %q", title.Name), func() error {
			var ferr error
			details, ferr = s.source.FetchVoteDetails(ctx, title.Kind, title.ID)
			return ferr
		})
		switch {
		case err == nil:
			rec.Rating = details.Rate
			rec.RatedAt = details.RatedAt()
			rec.Favorited = details.Favorite
		case errors.Is(err, filmweb.ErrAuthExpired):
			s.fail(fmt.Errorf("%w (while fetching vote details for %q)", filmweb.ErrAuthExpired, title.Name))
			return rec, false
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return rec, false
		default:
			utils.Log.Warn("No vote details for ", title.Name, ", exporting it unrated: ", err)
		}
	}

	return rec, true
}

// withRetry runs fn under the shared rate limiter, retrying transient
// failures with exponential backoff up to the configured attempt budget.
// Non-transient errors come back immediately.
func (s *Scheduler) withRetry(ctx context.Context, what string, fn func() error) error {
	var err error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			utils.Log.Debug("Retrying ", what, " (attempt ", attempt+1, "): ", err)
			select {
			case <-time.After(s.cfg.RetryBase << (attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if werr := s.limiter.Wait(ctx); werr != nil {
			return werr
		}
		if err = fn(); err == nil || !filmweb.IsTransient(err) {
			return err
		}
	}
	return err
}

func (s *Scheduler) printTitle(rec RatingRecord) {
	if s.cfg.Quiet {
		return
	}
	suffix := ""
	if rec.Rating > 0 {
		suffix = fmt.Sprintf(" %d/10", rec.Rating)
	}
	if rec.Favorited {
		suffix += " ♥"
	}
	fmt.Fprintf(s.cfg.Out, "[+] %s (%d)%s\n", rec.Title, rec.Year, suffix)
}
