package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/saturnines/commerce-export/pkg/errors"
)

// Scheduler runs exports on a cron schedule. A run that is still going when
// the next one is due makes that next one skip, so runs never overlap.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	job      cron.Job
	runner   Runner
	tasks    Tasks
	log      zerolog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewScheduler parses spec (standard five-field cron syntax or a
// descriptor such as "@daily").
func NewScheduler(spec string, runner Runner, tasks Tasks, log zerolog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, fmt.Sprintf("invalid schedule %q", spec))
	}

	cl := cronLogger{log: log}
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cl)),
		schedule: schedule,
		runner:   runner,
		tasks:    tasks,
		log:      log,
		ctx:      context.Background(),
	}
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.runOnce))
	s.cron.Schedule(schedule, s.job)
	return s, nil
}

// Next returns the first activation after t
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Trigger runs one export now, subject to the same no-overlap rule as
// scheduled runs.
func (s *Scheduler) Trigger() {
	s.job.Run()
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	if _, err := s.runner.Run(ctx, s.tasks); err != nil {
		s.log.Error().Err(err).Msg("scheduled export failed")
	}
}

// Start runs the schedule until ctx is done, then waits for a running
// export to finish. If runNow is set one export runs right away.
func (s *Scheduler) Start(ctx context.Context, runNow bool) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info().Time("next", s.Next(time.Now())).Msg("scheduler started")

	if runNow {
		s.Trigger()
	}

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.log.Info().Msg("scheduler stopped")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
