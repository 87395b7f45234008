package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Flusher drops cached plugin modules.
type Flusher interface {
	Flush() int
}

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

func New(log zerolog.Logger) *Scheduler {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
		cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron: cron.New(cron.WithParser(parser)),
		log:  log,
	}
}

// ScheduleFlush empties target on the given cron spec ("@every 1h",
// "0 */30 * * * *", ...).
func (s *Scheduler) ScheduleFlush(spec string, target Flusher) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.flush(target)
	})
	if err != nil {
		return fmt.Errorf("invalid cache flush schedule %q: %w", spec, err)
	}
	s.log.Info().Str("schedule", spec).Msg("plugin cache flush scheduled")
	return nil
}

func (s *Scheduler) flush(target Flusher) {
	if n := target.Flush(); n > 0 {
		s.log.Info().Int("modules", n).Msg("plugin cache flushed")
	}
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler; the returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
