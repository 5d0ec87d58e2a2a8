// Package scheduler запускает периодический тик жизненного цикла: пересчёт статусов
// заказов и проход по подпискам. Один экземпляр на процесс, запускается при старте приложения.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/metrics"
)

// DefaultInterval — период тика по умолчанию.
const DefaultInterval = 30 * time.Second

// Job выполняется на каждом тике.
type Job struct {
	Name string
	Run  func(ctx context.Context, now time.Time) error
}

// Locker выдаёт аренду тика, чтобы реплики не выполняли один и тот же тик одновременно.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Option настраивает Scheduler.
type Option func(*Scheduler)

// WithClock подменяет источник времени.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLocker включает распределённую аренду тика.
func WithLocker(l Locker, key string, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.locker = l
		s.lockKey = key
		s.lockTTL = ttl
	}
}

// WithMetrics подключает счётчики тиков.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithTickTimeout ограничивает длительность одного тика.
func WithTickTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.tickTimeout = d }
}

// Scheduler выполняет задачи сразу после запуска и затем с периодом interval.
type Scheduler struct {
	log         *slog.Logger
	interval    time.Duration
	jobs        []Job
	clock       clock.Clock
	locker      Locker
	lockKey     string
	lockTTL     time.Duration
	tickTimeout time.Duration
	metrics     *metrics.Metrics
	tracer      trace.Tracer

	tickMu    sync.Mutex
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New создает планировщик.
func New(log *slog.Logger, interval time.Duration, jobs []Job, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		log:      log.With(slog.String("component", "scheduler")),
		interval: interval,
		jobs:     jobs,
		clock:    clock.Real{},
		tracer:   otel.Tracer("github.com/magabrotheeeer/mealkit-lifecycle/internal/services/scheduler"),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tickTimeout <= 0 {
		s.tickTimeout = interval
	}
	if s.lockTTL <= 0 {
		s.lockTTL = s.tickTimeout
	}
	return s
}

// Start запускает цикл тиков. Повторные вызовы ничего не делают.
// Отмена ctx, как и Stop, прекращает планирование новых тиков, но не прерывает текущий.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.loop(ctx)
		s.log.Info("scheduler started", slog.Duration("interval", s.interval), slog.Int("jobs", len(s.jobs)))
	})
}

// Stop прекращает планирование тиков и ждёт завершения текущего.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	_ = s.TickNow(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.TickNow(ctx)
		}
	}
}

// TickNow синхронно выполняет один тик. Ошибки задач логируются и возвращаются вместе.
// Тик не отменяется вместе с ctx, его ограничивает только собственный таймаут.
func (s *Scheduler) TickNow(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.tickTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "scheduler.Tick")
	defer span.End()

	started := time.Now()
	defer func() { s.metrics.TickDuration(time.Since(started)) }()

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, s.lockKey, s.lockTTL)
		switch {
		case err != nil:
			// статусы монотонны, поэтому без аренды тик всё равно безопасен
			s.log.Warn("failed to acquire tick lease, running unlocked", sl.Err(err))
		case !ok:
			s.log.Debug("tick lease held by another replica, skipping")
			span.SetAttributes(attribute.Bool("skipped", true))
			for _, job := range s.jobs {
				s.metrics.JobSkipped(job.Name)
			}
			return nil
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					s.log.Warn("failed to release tick lease", sl.Err(err))
				}
			}()
		}
	}

	now := s.clock.Now()
	span.SetAttributes(attribute.String("now", now.Format(time.RFC3339)))

	var errs []error
	for _, job := range s.jobs {
		if err := s.runJob(ctx, job, now); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, job Job, now time.Time) (err error) {
	log := s.log.With(slog.String("job", job.Name))
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
		s.metrics.JobRun(job.Name, err)
		if err != nil {
			log.Error("scheduler job failed", sl.Err(err))
			return
		}
		log.Debug("scheduler job finished", slog.Duration("took", time.Since(started)))
	}()

	if err := job.Run(ctx, now); err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	return nil
}
