// Package matchtest provides a match.Scheduler driven by a fake clock.
package matchtest

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the part of clockwork's fake clock the scheduler needs.
type Clock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type pendingTask struct {
	key  string
	at   time.Time
	task func()
	done bool
}

// Scheduler runs tasks only when the test advances time.
type Scheduler struct {
	clock Clock
	tasks []*pendingTask
}

func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

func (s *Scheduler) After(key string, delay time.Duration, task func()) {
	s.tasks = append(s.tasks, &pendingTask{key: key, at: s.clock.Now().Add(delay), task: task})
}

func (s *Scheduler) Cancel(key string) {
	for _, t := range s.tasks {
		if t.key == key {
			t.done = true
		}
	}
}

// Advance moves the clock forward by d, running every task that falls due on
// the way in time order. Tasks scheduled by a running task are picked up if
// they fall due before the end.
func (s *Scheduler) Advance(d time.Duration) {
	end := s.clock.Now().Add(d)
	for {
		var next *pendingTask
		for _, t := range s.tasks {
			if t.done || t.at.After(end) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		if delta := next.at.Sub(s.clock.Now()); delta > 0 {
			s.clock.Advance(delta)
		}
		next.done = true
		next.task()
	}
	if delta := end.Sub(s.clock.Now()); delta > 0 {
		s.clock.Advance(delta)
	}
}

// Pending returns the number of tasks under key that have not run.
func (s *Scheduler) Pending(key string) int {
	n := 0
	for _, t := range s.tasks {
		if !t.done && t.key == key {
			n++
		}
	}
	return n
}
