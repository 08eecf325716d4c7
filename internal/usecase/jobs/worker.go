// Package jobs исполняет фоновые задачи конвейера из приоритетной очереди.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
)

const (
	DefaultWorkers      = 4
	DefaultJobTimeout   = 2 * time.Minute
	DefaultPollInterval = time.Second
)

// Handler выполняет задачу одного типа.
type Handler func(ctx context.Context, job domain.AutomationJob, payload domain.JobPayload) error

// Options — параметры пула исполнителей.
type Options struct {
	Workers      int
	JobTimeout   time.Duration
	PollInterval time.Duration
}

// Worker забирает задачи из очереди и передаёт их обработчикам.
type Worker struct {
	queue    domain.JobQueue
	launches domain.LaunchRepo
	notifier domain.Notifier
	handlers map[domain.JobType]Handler
	log      zerolog.Logger
	opts     Options
}

// NewWorker создаёт пул исполнителей.
func NewWorker(queue domain.JobQueue, launches domain.LaunchRepo, notifier domain.Notifier, logger zerolog.Logger, opts Options) *Worker {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &Worker{
		queue:    queue,
		launches: launches,
		notifier: notifier,
		handlers: make(map[domain.JobType]Handler),
		log:      logger.With().Str("component", "worker").Logger(),
		opts:     opts,
	}
}

// Handle регистрирует обработчик типа задач.
func (w *Worker) Handle(jobType domain.JobType, h Handler) {
	w.handlers[jobType] = h
}

// Run запускает исполнителей и блокируется до отмены контекста.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Workers; i++ {
		id := i
		g.Go(func() error {
			w.loop(ctx, id)
			return nil
		})
	}
	w.log.Info().Int("workers", w.opts.Workers).Msg("worker: запуск обработки очереди")
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context, id int) {
	log := w.log.With().Int("worker", id).Logger()
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := w.ProcessOne(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("worker: ошибка чтения очереди")
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.opts.PollInterval):
		}
	}
}

// ProcessOne забирает и выполняет одну задачу. Возвращает false, если очередь пуста.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, err := w.queue.Claim(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	jobLog := w.log.With().
		Str("job_id", job.ID).
		Str("job_type", string(job.JobType)).
		Str("launch_id", job.LaunchID).
		Logger()
	start := time.Now()

	if cancelled, err := w.launchCancelled(ctx, job); err != nil {
		jobLog.Warn().Err(err).Msg("worker: не удалось проверить запуск")
	} else if cancelled {
		if err := w.queue.Cancel(ctx, job.ID); err != nil {
			return true, fmt.Errorf("cancel job %s: %w", job.ID, err)
		}
		metrics.ObserveJob(string(job.JobType), string(domain.JobStatusCancelled), time.Since(start))
		jobLog.Info().Msg("worker: запуск отменён, задача снята")
		return true, nil
	}

	runErr := w.execute(ctx, job)
	if runErr != nil {
		metrics.ObserveJob(string(job.JobType), string(domain.JobStatusFailed), time.Since(start))
		jobLog.Error().Err(runErr).Msg("worker: задача завершилась ошибкой")
		if err := w.queue.Fail(ctx, job.ID, runErr.Error()); err != nil {
			return true, fmt.Errorf("fail job %s: %w", job.ID, err)
		}
		if err := w.notifier.Notify(ctx, domain.Alert{
			Title:    "Job failed",
			Body:     fmt.Sprintf("%s %s: %v", job.JobType, job.ID, runErr),
			LaunchID: job.LaunchID,
		}); err != nil {
			jobLog.Warn().Err(err).Msg("worker: уведомление не отправлено")
		}
		return true, nil
	}

	if err := w.queue.Complete(ctx, job.ID); err != nil {
		return true, fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	metrics.ObserveJob(string(job.JobType), string(domain.JobStatusCompleted), time.Since(start))
	jobLog.Info().Dur("took", time.Since(start)).Msg("worker: задача выполнена")
	return true, nil
}

func (w *Worker) launchCancelled(ctx context.Context, job domain.AutomationJob) (bool, error) {
	if job.LaunchID == "" || w.launches == nil {
		return false, nil
	}
	launch, err := w.launches.GetLaunch(ctx, job.LaunchID)
	if err != nil {
		return false, err
	}
	return launch.Status == domain.LaunchStatusCancelled, nil
}

func (w *Worker) execute(ctx context.Context, job domain.AutomationJob) (err error) {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		return fmt.Errorf("no handler for job type %s", job.JobType)
	}
	payload, err := job.DecodePayload()
	if err != nil {
		return err
	}
	jobCtx, cancel := context.WithTimeout(ctx, w.opts.JobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(jobCtx, job, payload)
}
