// Package relayer polls a price source on a schedule and submits each
// batch to the oracle through a pool of relayer identities.
package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"stdref/internal/client"
	"stdref/internal/source"
	"stdref/internal/wire"
)

// Submitter sends one relay. *client.Client implements it.
type Submitter interface {
	Relay(ctx context.Context, req wire.RelayRequest) error
}

var _ Submitter = (*client.Client)(nil)

// Sender is one relayer identity able to submit.
type Sender struct {
	Name      string
	Submitter Submitter
}

// Task is a batch waiting for a free sender.
type Task struct {
	Data     source.PriceData
	Attempts int
}

// Recorder receives relayer metrics.
type Recorder interface {
	Submission(ok bool, d time.Duration)
	QueueDepth(n int)
}

type nopRecorder struct{}

func (nopRecorder) Submission(bool, time.Duration) {}
func (nopRecorder) QueueDepth(int)                 {}

type Config struct {
	Symbols        []string
	Schedule       string
	MaxTry         int
	QueueSize      int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

type Relayer struct {
	cfg      Config
	source   source.Source
	senders  chan Sender
	pending  chan Task
	logger   *zap.Logger
	recorder Recorder

	wg sync.WaitGroup
}

type Option func(*Relayer)

func WithLogger(l *zap.Logger) Option {
	return func(r *Relayer) { r.logger = l }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Relayer) { r.recorder = rec }
}

func New(cfg Config, src source.Source, senders []Sender, opts ...Option) (*Relayer, error) {
	if src == nil {
		return nil, errors.New("relayer: nil source")
	}
	if len(senders) == 0 {
		return nil, errors.New("relayer: no senders")
	}
	if cfg.MaxTry <= 0 {
		cfg.MaxTry = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 500 * time.Millisecond
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = cfg.BackoffInitial
	}

	r := &Relayer{
		cfg:      cfg,
		source:   src,
		senders:  make(chan Sender, len(senders)),
		pending:  make(chan Task, cfg.QueueSize),
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, s := range senders {
		r.senders <- s
	}
	return r, nil
}

// Poll fetches one batch and queues it. Empty batches are dropped.
func (r *Relayer) Poll(ctx context.Context) error {
	data, err := r.source.Fetch(ctx, r.cfg.Symbols)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", r.source.Name(), err)
	}
	if data.Empty() {
		r.logger.Debug("empty batch dropped", zap.String("source", r.source.Name()))
		return nil
	}

	select {
	case r.pending <- Task{Data: data}:
		r.recorder.QueueDepth(len(r.pending))
		r.logger.Debug("batch queued",
			zap.Uint64("request_id", data.RequestID),
			zap.Uint64("resolve_time", data.ResolveTime),
			zap.Int("prices", len(data.Prices)),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run polls on the configured schedule and dispatches queued tasks until
// ctx is canceled. In-flight submissions finish before Run returns.
func (r *Relayer) Run(ctx context.Context) error {
	sched := cron.New(cron.WithLogger(cronLogger{r.logger.Sugar()}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{r.logger.Sugar()})))
	if _, err := sched.AddFunc(r.cfg.Schedule, func() {
		if err := r.Poll(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("poll failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", r.cfg.Schedule, err)
	}
	sched.Start()
	r.logger.Info("relayer started",
		zap.String("schedule", r.cfg.Schedule),
		zap.Int("senders", cap(r.senders)),
		zap.Int("max_try", r.cfg.MaxTry),
	)

	r.dispatch(ctx)

	<-sched.Stop().Done()
	r.wg.Wait()
	r.logger.Info("relayer stopped")
	return nil
}

func (r *Relayer) dispatch(ctx context.Context) {
	for {
		var task Task
		select {
		case <-ctx.Done():
			return
		case task = <-r.pending:
			r.recorder.QueueDepth(len(r.pending))
		}

		var sender Sender
		select {
		case <-ctx.Done():
			return
		case sender = <-r.senders:
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.handle(ctx, task, sender)
		}()
	}
}

// handle submits task with sender, retrying transient failures with
// exponential backoff up to MaxTry attempts. The sender is always returned.
func (r *Relayer) handle(ctx context.Context, task Task, sender Sender) {
	defer func() { r.senders <- sender }()

	start := time.Now()
	req := task.Data.Request()
	op := func() error {
		task.Attempts++
		err := sender.Submitter.Relay(ctx, req)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.cfg.BackoffInitial
	eb.MaxInterval = r.cfg.BackoffMax
	eb.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.cfg.MaxTry-1)), ctx)

	err := backoff.RetryNotify(op, bo, func(err error, wait time.Duration) {
		r.logger.Warn("relay attempt failed",
			zap.String("sender", sender.Name),
			zap.Uint64("request_id", task.Data.RequestID),
			zap.Int("attempt", task.Attempts),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	})
	r.recorder.Submission(err == nil, time.Since(start))
	if err != nil {
		r.logger.Error("relay failed",
			zap.String("sender", sender.Name),
			zap.Uint64("request_id", task.Data.RequestID),
			zap.Int("attempts", task.Attempts),
			zap.Error(err),
		)
		return
	}
	r.logger.Info("relayed",
		zap.String("sender", sender.Name),
		zap.Uint64("request_id", task.Data.RequestID),
		zap.Uint64("resolve_time", task.Data.ResolveTime),
		zap.Int("prices", len(task.Data.Prices)),
		zap.Int("attempts", task.Attempts),
	)
}

// retryable reports whether err may clear on its own. API rejections other
// than rate limiting and server faults are final.
func retryable(err error) bool {
	var se *client.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
