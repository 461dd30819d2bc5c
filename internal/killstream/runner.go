package killstream

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/logging"
	"killboard-stats/internal/observability"
	"killboard-stats/internal/storage"
)

// ErrSourceClosed is returned by Run when the source stops delivering.
var ErrSourceClosed = errors.New("killstream source closed")

// Runner decodes feed messages and stores killmails in batches.
type Runner struct {
	source        Source
	killmails     storage.KillmailStore
	progress      storage.IngestProgressStore
	batchSize     int
	flushInterval time.Duration
	replayWindow  time.Duration
	logger        *log.Logger

	buffer []*domain.Killmail
	last   *storage.IngestProgress
	stats  RunnerStats
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source        Source
	KillmailStore storage.KillmailStore
	ProgressStore storage.IngestProgressStore // optional
	BatchSize     int                         // Default: 100
	FlushInterval time.Duration               // Default: 5s
	ReplayWindow  time.Duration               // Default: 24h - killmails older than last progress minus this are skipped
	Logger        *log.Logger
}

// RunnerStats counts what a Runner has done. Read it after Run returns.
type RunnerStats struct {
	Received     int
	Stored       int
	Duplicates   int
	Skipped      int
	DecodeErrors int
	StoreErrors  int
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	replayWindow := opts.ReplayWindow
	if replayWindow <= 0 {
		replayWindow = 24 * time.Hour
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Runner{
		source:        opts.Source,
		killmails:     opts.KillmailStore,
		progress:      opts.ProgressStore,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		replayWindow:  replayWindow,
		logger:        logger,
	}
}

// Stats returns runner counters.
func (r *Runner) Stats() RunnerStats {
	return r.stats
}

// Run consumes the source until ctx is cancelled or the source closes.
// Buffered killmails are flushed before returning.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.loadProgress(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	msgs := r.source.Messages()
	r.logger.Info("runner started", "batch", r.batchSize, "flush", r.flushInterval)

	for {
		select {
		case <-ctx.Done():
			r.flush(context.WithoutCancel(ctx))
			r.logger.Info("runner stopping", "stored", r.stats.Stored)
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				r.flush(ctx)
				return ErrSourceClosed
			}
			r.handle(ctx, msg)

		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

func (r *Runner) loadProgress(ctx context.Context) error {
	if r.progress == nil {
		return nil
	}

	p, err := r.progress.GetLastProcessed(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return err
	}

	r.last = p
	r.logger.Info("resuming", "killmail", p.KillmailID, "time", p.Time)
	return nil
}

// handle decodes one message and buffers the killmail.
func (r *Runner) handle(ctx context.Context, msg []byte) {
	r.stats.Received++
	observability.RecordKillmailReceived()

	km, warnings, err := Decode(msg)
	if err != nil {
		r.stats.DecodeErrors++
		observability.RecordDecodeError()
		r.logger.Warn("dropping message", "err", err)
		return
	}
	for _, w := range warnings {
		observability.RecordWarning(w.Code)
		r.logger.Warn("data warning", "code", w.Code, "killmail", w.FactKey, "detail", w.Detail)
	}

	if r.last != nil && km.Time.Before(r.last.Time.Add(-r.replayWindow)) {
		r.stats.Skipped++
		return
	}

	r.buffer = append(r.buffer, km)
	if len(r.buffer) >= r.batchSize {
		r.flush(ctx)
	}
}

// flush stores the buffer. A batch rejected for duplicates is retried one
// killmail at a time so new killmails in it still land.
func (r *Runner) flush(ctx context.Context) {
	if len(r.buffer) == 0 {
		return
	}
	batch := r.buffer
	r.buffer = nil

	var stored []*domain.Killmail
	err := r.killmails.InsertBulk(ctx, batch)
	switch {
	case err == nil:
		stored = batch
	case errors.Is(err, storage.ErrDuplicateKey):
		for _, km := range batch {
			switch err := r.killmails.InsertBulk(ctx, []*domain.Killmail{km}); {
			case err == nil:
				stored = append(stored, km)
			case errors.Is(err, storage.ErrDuplicateKey):
				r.stats.Duplicates++
			default:
				r.stats.StoreErrors++
				r.logger.Error("store killmail", "killmail", km.KillmailID, "err", err)
			}
		}
	default:
		r.stats.StoreErrors += len(batch)
		r.logger.Error("store batch", "size", len(batch), "err", err)
		return
	}

	if len(stored) == 0 {
		return
	}
	r.stats.Stored += len(stored)

	latest := stored[0]
	for _, km := range stored[1:] {
		if km.Time.After(latest.Time) || (km.Time.Equal(latest.Time) && km.KillmailID > latest.KillmailID) {
			latest = km
		}
	}
	observability.RecordKillmailsStored(len(stored), latest.Time)
	r.logger.Debug("flushed", "stored", len(stored), "latest", latest.KillmailID)

	if r.last != nil && !latest.Time.After(r.last.Time) {
		return
	}
	r.last = &storage.IngestProgress{KillmailID: latest.KillmailID, Time: latest.Time}
	if r.progress != nil {
		if err := r.progress.SetLastProcessed(ctx, r.last); err != nil {
			r.logger.Error("save progress", "err", err)
		}
	}
}
