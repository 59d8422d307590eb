package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/metrics"
	"signage-analytics/internal/usecase/playback"
)

const (
	maxDeliveryAttempts = 5
	// maxReceiveFailures consecutive queue errors stop the worker.
	maxReceiveFailures = 10
)

// Job outcomes, also used as metric labels.
const (
	jobCompleted = "completed"
	jobDuplicate = "duplicate"
	jobRetry     = "retry"
	jobDropped   = "dropped"
)

type batchIngester interface {
	RecordBulk(ctx context.Context, entries []domain.PlaybackEntry) playback.BulkResult
}

// jobWorker drains the playback queue. Every job id is processed at most once
// per jobTTL; a batch with failed entries is redelivered up to
// maxDeliveryAttempts times, which is safe because stored entries come back as
// duplicates.
type jobWorker struct {
	log    zerolog.Logger
	queue  domain.PlaybackQueue
	cache  domain.Cache
	ingest batchIngester
	jobTTL time.Duration
	sleep  func(context.Context, time.Duration)

	mu       sync.Mutex
	attempts map[string]int
}

func newJobWorker(logger zerolog.Logger, q domain.PlaybackQueue, c domain.Cache, ingest batchIngester, jobTTL time.Duration) *jobWorker {
	if jobTTL <= 0 {
		jobTTL = 24 * time.Hour
	}
	return &jobWorker{
		log:      logger,
		queue:    q,
		cache:    c,
		ingest:   ingest,
		jobTTL:   jobTTL,
		sleep:    sleepCtx,
		attempts: make(map[string]int),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Run consumes jobs until ctx is done. A queue that keeps failing, such as a
// closed broker channel, ends the worker with an error.
func (w *jobWorker) Run(ctx context.Context) error {
	failures := 0
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			failures++
			if failures >= maxReceiveFailures {
				return fmt.Errorf("queue failed %d times in a row: %w", failures, err)
			}
			w.log.Error().Err(err).Int("failures", failures).Msg("ingestor: failed to read queue")
			w.sleep(ctx, time.Second)
			continue
		}
		failures = 0
		w.process(ctx, job, ack)
	}
}

func (w *jobWorker) process(ctx context.Context, job domain.PlaybackBatchJob, ack domain.AckFunc) string {
	jobLog := w.log.With().Str("job_id", job.ID).Int("entries", len(job.Entries)).Logger()

	if job.ID == "" {
		jobLog.Error().Msg("ingestor: job without id, acknowledging and skipping")
		w.finish(jobLog, ack, true, jobDropped)
		return jobDropped
	}

	ran := false
	err := w.cache.Once("playback_job:"+job.ID, w.jobTTL, func() error {
		ran = true
		res := w.ingest.RecordBulk(ctx, job.Entries)
		jobLog.Info().
			Int("stored", res.Stored).
			Int("duplicates", res.Duplicates).
			Int("skipped", res.Skipped).
			Int("failed", res.Failed).
			Msg("ingestor: batch processed")
		if res.Failed > 0 {
			return fmt.Errorf("%d entries failed", res.Failed)
		}
		return nil
	})
	if err == nil {
		w.forget(job.ID)
		if !ran {
			jobLog.Info().Msg("ingestor: job already processed, acknowledging")
			w.finish(jobLog, ack, true, jobDuplicate)
			return jobDuplicate
		}
		w.finish(jobLog, ack, true, jobCompleted)
		return jobCompleted
	}

	attempt := w.attempt(job.ID)
	jobLog = jobLog.With().Int("attempt", attempt).Logger()
	if attempt < maxDeliveryAttempts {
		jobLog.Warn().Err(err).Msg("ingestor: batch failed, will retry")
		w.finish(jobLog, ack, false, jobRetry)
		return jobRetry
	}
	jobLog.Error().Err(err).Msg("ingestor: retry limit reached, dropping batch")
	w.forget(job.ID)
	w.finish(jobLog, ack, true, jobDropped)
	return jobDropped
}

func (w *jobWorker) finish(log zerolog.Logger, ack domain.AckFunc, success bool, outcome string) {
	metrics.QueueJobs.WithLabelValues(outcome).Inc()
	if err := ack(success); err != nil {
		log.Error().Err(err).Bool("success", success).Msg("ingestor: failed to acknowledge job")
	}
}

func (w *jobWorker) attempt(id string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[id]++
	return w.attempts[id]
}

func (w *jobWorker) forget(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, id)
}
