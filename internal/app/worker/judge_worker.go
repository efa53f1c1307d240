package worker

import (
	"context"
	"errors"
	"time"

	"codeclash/internal/common"
	"codeclash/internal/platform/logger"
	"codeclash/internal/platform/metrics"
	"codeclash/internal/platform/queue"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Evaluator turns a Judging submission into a terminal one.
type Evaluator interface {
	Evaluate(ctx context.Context, submissionID string) error
}

type Config struct {
	Workers        int
	DequeueTimeout time.Duration
	ErrorBackoff   time.Duration
	DepthInterval  time.Duration
}

// JudgeWorker runs a pool of consumers on the judge queue. Each submission is
// evaluated under its own redis lock, so a duplicated job never runs twice at once.
type JudgeWorker struct {
	queue     *queue.JudgeQueue
	locker    *queue.Locker
	evaluator Evaluator
	cfg       Config
}

func NewJudgeWorker(q *queue.JudgeQueue, locker *queue.Locker, evaluator Evaluator, cfg Config) *JudgeWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = 5 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Second
	}
	if cfg.DepthInterval <= 0 {
		cfg.DepthInterval = 15 * time.Second
	}
	return &JudgeWorker{queue: q, locker: locker, evaluator: evaluator, cfg: cfg}
}

// Start blocks until ctx is cancelled and every consumer has finished its current job.
func (w *JudgeWorker) Start(ctx context.Context) error {
	logger.Info(ctx, "judge worker pool started",
		zap.String("queue", w.queue.Name()), zap.Int("workers", w.cfg.Workers))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Workers; i++ {
		id := i
		g.Go(func() error {
			w.consume(gctx, id)
			return nil
		})
	}
	g.Go(func() error {
		w.sampleDepth(gctx)
		return nil
	})
	err := g.Wait()
	logger.Info(context.Background(), "judge worker pool stopped")
	return err
}

func (w *JudgeWorker) consume(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		submissionID, err := w.queue.Dequeue(ctx, w.cfg.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "failed to pop from judge queue", zap.Int("worker", id), zap.Error(err))
			sleep(ctx, w.cfg.ErrorBackoff)
			continue
		}
		if submissionID == "" {
			continue
		}
		w.processWithLock(ctx, submissionID)
	}
}

func (w *JudgeWorker) processWithLock(ctx context.Context, submissionID string) {
	ctx = logger.WithSubmissionID(ctx, submissionID)

	token, err := w.locker.Acquire(ctx, submissionID)
	if errors.Is(err, common.ErrLockNotAcquired) {
		logger.Info(ctx, "submission already being judged elsewhere, dropping duplicate job")
		return
	}
	if err != nil {
		logger.Error(ctx, "failed to attempt submission lock", zap.Error(err))
		w.requeue(ctx, submissionID)
		return
	}
	defer func() {
		// release even when ctx is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		released, err := w.locker.Release(releaseCtx, submissionID, token)
		if err != nil {
			logger.Error(ctx, "failed to release submission lock", zap.Error(err))
		} else if !released {
			logger.Warn(ctx, "submission lock expired before release")
		}
	}()

	if err := w.evaluator.Evaluate(ctx, submissionID); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			w.requeue(ctx, submissionID)
			return
		}
		logger.Error(ctx, "evaluation returned an error", zap.Error(err))
	}
}

func (w *JudgeWorker) requeue(ctx context.Context, submissionID string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.queue.Requeue(rctx, submissionID); err != nil {
		logger.Error(ctx, "failed to requeue submission", zap.Error(err))
		return
	}
	logger.Info(ctx, "submission requeued")
}

func (w *JudgeWorker) sampleDepth(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.DepthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.queue.Len(ctx); err == nil {
				metrics.QueueDepth.Set(float64(n))
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
