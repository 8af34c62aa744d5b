// Package jobs runs the periodic follow-up sweep: it raises overdue and
// due-today notifications and purges expired idempotency records on a cron
// schedule, exporting the outcome as Prometheus metrics.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-followup-backend/internal/services"
)

// NotificationSweeper is the part of the notification service the job needs.
type NotificationSweeper interface {
	Sweep(ctx context.Context) (services.SweepResult, error)
}

// PurgeFunc removes idempotency records that expired before now.
type PurgeFunc func(ctx context.Context, now time.Time) (int64, error)

// Options configures a Sweeper.
type Options struct {
	Spec       string        // cron spec or descriptor (@every 1h); empty disables the schedule
	Timeout    time.Duration // bound for a single run; 0 means one minute
	Registerer prometheus.Registerer
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Sweeper owns the cron engine and the sweep metrics.
type Sweeper struct {
	notify NotificationSweeper
	purge  PurgeFunc
	opts   Options
	sched  cron.Schedule
	log    zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron

	overdue  prometheus.Gauge
	dueToday prometheus.Gauge
	created  prometheus.Counter
	purged   prometheus.Counter
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New validates the schedule and registers the sweep collectors. purge may
// be nil.
func New(notify NotificationSweeper, purge PurgeFunc, opts Options) (*Sweeper, error) {
	if notify == nil {
		return nil, errors.New("jobs: notification sweeper is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}

	s := &Sweeper{
		notify: notify,
		purge:  purge,
		opts:   opts,
		log:    opts.Logger.With().Str("component", "sweeper").Logger(),
		overdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "followup_companies_overdue",
			Help: "Companies past their follow-up date at the last sweep.",
		}),
		dueToday: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "followup_companies_due_today",
			Help: "Companies due for follow-up today at the last sweep.",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "followup_notifications_created_total",
			Help: "Notifications raised by the sweep.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "followup_idempotency_purged_total",
			Help: "Expired idempotency records removed by the sweep.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "followup_sweep_runs_total",
			Help: "Sweep runs by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "followup_sweep_duration_seconds",
			Help:    "Duration of sweep runs in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if opts.Spec != "" {
		sched, err := parser.Parse(opts.Spec)
		if err != nil {
			return nil, err
		}
		s.sched = sched
	}

	for _, c := range []prometheus.Collector{s.overdue, s.dueToday, s.created, s.purged, s.runs, s.duration} {
		if err := opts.Registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Enabled reports whether a schedule was configured.
func (s *Sweeper) Enabled() bool { return s.sched != nil }

// Start begins running the sweep on its schedule. It is a no-op when the
// schedule is disabled or the sweeper is already running. Overlapping runs
// are skipped.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched == nil {
		s.log.Info().Msg("notification sweep disabled")
		return
	}
	if s.cron != nil {
		return
	}
	cl := cronLogger{s.log}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.cron.Schedule(s.sched, cron.FuncJob(func() {
		_ = s.RunOnce(context.Background())
	}))
	s.cron.Start()
	s.log.Info().Str("spec", s.opts.Spec).Dur("timeout", s.opts.Timeout).Msg("notification sweep scheduled")
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to
// end, whichever comes first.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		s.log.Info().Msg("notification sweep stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single sweep bounded by the configured timeout. A
// failed sweep does not prevent the idempotency purge.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	res, sweepErr := s.sweep(ctx)
	s.duration.Observe(time.Since(start).Seconds())

	if sweepErr != nil {
		s.runs.WithLabelValues("failure").Inc()
		s.log.Error().Err(sweepErr).Msg("notification sweep failed")
	} else {
		s.runs.WithLabelValues("success").Inc()
		s.overdue.Set(float64(res.Overdue))
		s.dueToday.Set(float64(res.DueToday))
		s.created.Add(float64(res.Created))
		s.log.Info().
			Int("overdue", res.Overdue).
			Int("due_today", res.DueToday).
			Int("created", res.Created).
			Msg("notification sweep finished")
	}

	if s.purge == nil {
		return sweepErr
	}
	n, err := s.purge(ctx, s.opts.Now().UTC())
	if err != nil {
		s.log.Warn().Err(err).Msg("idempotency purge failed")
		return errors.Join(sweepErr, err)
	}
	if n > 0 {
		s.purged.Add(float64(n))
		s.log.Debug().Int64("purged", n).Msg("expired idempotency records removed")
	}
	return sweepErr
}

// sweep turns a panic in the notification sweep into an error so the run is
// logged and counted as a failure.
func (s *Sweeper) sweep(ctx context.Context) (res services.SweepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("notification sweep panicked")
			err = fmt.Errorf("jobs: sweep panicked: %v", r)
		}
	}()
	return s.notify.Sweep(ctx)
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
