package core

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Scheduler runs match timers as gocron one-time jobs. A job never touches
// game state itself: it posts its task to the game loop, so timers obey the
// same run-to-completion order as network events.
type Scheduler struct {
	cron   gocron.Scheduler
	clock  clockwork.Clock
	post   func(func()) bool
	logger zerolog.Logger
}

func NewScheduler(clock clockwork.Clock, post func(func()) bool, logger zerolog.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, eris.Wrap(err, "failed to create scheduler")
	}
	return &Scheduler{
		cron:   cron,
		clock:  clock,
		post:   post,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Shutdown() error {
	return eris.Wrap(s.cron.Shutdown(), "failed to shut down scheduler")
}

// After runs task on the game loop once delay has passed. Jobs are tagged
// with key. Callers are on the loop already, so a non-positive delay runs the
// task inline instead of queueing it behind a possibly full task buffer.
func (s *Scheduler) After(key string, delay time.Duration, task func()) {
	if delay <= 0 {
		task()
		return
	}

	_, err := s.cron.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(s.clock.Now().Add(delay))),
		gocron.NewTask(func() {
			if !s.post(task) {
				s.logger.Debug().Str("key", key).Msg("Dropping timer fired after shutdown")
			}
		}),
		gocron.WithTags(key),
	)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Dur("delay", delay).Msg("Failed to schedule timer")
	}
}

// Cancel drops every pending job tagged with key.
func (s *Scheduler) Cancel(key string) {
	s.cron.RemoveByTags(key)
}
