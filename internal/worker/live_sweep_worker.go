package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vigilo/vigilo-backend/internal/config"
)

const (
	SweepBatchSize    = 50
	SweepBatchTimeout = 2 * time.Second
	SweepPollTimeout  = 1 * time.Second
)

// LiveSweepWorker drains the expiry queue and flips stale attempts off the
// live flag in bulk. The live listing excludes those attempts at read time
// already; this worker only makes the correction durable, so losing a queued
// id is harmless: the listing re-queues it on the next read.
type LiveSweepWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewLiveSweepWorker creates a new LiveSweepWorker.
func NewLiveSweepWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *LiveSweepWorker {
	return &LiveSweepWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "live_sweep_worker").Logger(),
	}
}

// Start runs the worker loop until ctx is cancelled. Remaining batch entries
// are flushed on shutdown.
func (w *LiveSweepWorker) Start(ctx context.Context) {
	w.log.Info().Msg("LiveSweepWorker started")

	batch := make([]uuid.UUID, 0, SweepBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= SweepBatchSize || time.Since(lastFlush) >= SweepBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, SweepPollTimeout, config.WorkerKey.ExpireLiveQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			id, err := uuid.Parse(item[1])
			if err != nil {
				w.log.Error().Err(err).Str("raw", item[1]).Msg("Invalid attempt id on expiry queue")
				continue
			}

			batch = append(batch, id)
		}
	}
}

func (w *LiveSweepWorker) flushSafe(ctx context.Context, batch []uuid.UUID) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkMarkNotLive(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk live sweep failed, using fallback")

		for _, id := range batch {
			if err := w.markSingle(ctx, id); err != nil {
				w.log.Error().Err(err).Str("attempt_id", id.String()).Msg("markSingle failed, requeueing")
				w.rdb.RPush(ctx, config.WorkerKey.ExpireLiveQueue, id.String())
			}
		}
		return
	}

	w.log.Debug().Int("count", len(batch)).Msg("Swept stale live attempts")
}

func (w *LiveSweepWorker) bulkMarkNotLive(ctx context.Context, ids []uuid.UUID) error {
	_, err := w.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET is_live = FALSE
		 WHERE id = ANY($1) AND is_live`, ids)
	return err
}

func (w *LiveSweepWorker) markSingle(ctx context.Context, id uuid.UUID) error {
	_, err := w.pool.Exec(ctx,
		`UPDATE exam_attempts SET is_live = FALSE WHERE id = $1 AND is_live`, id)
	return err
}
