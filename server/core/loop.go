package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// GameLoop is the server's only goroutine that touches game state. Network
// callbacks and timers hand work to it through Post; the ticker drives the
// liveness sweep.
type GameLoop struct {
	server   *Server
	tickRate int
	logger   zerolog.Logger
	tasks    chan func()
	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

func NewGameLoop(server *Server, tickRate int, logger zerolog.Logger) *GameLoop {
	return &GameLoop{
		server:   server,
		tickRate: tickRate,
		logger:   logger.With().Str("component", "loop").Logger(),
		tasks:    make(chan func(), 256),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the loop in its own goroutine.
func (g *GameLoop) Start() {
	g.started.Store(true)
	go g.Run()
}

func (g *GameLoop) Run() {
	defer close(g.done)

	ticker := time.NewTicker(time.Second / time.Duration(g.tickRate))
	defer ticker.Stop()

	g.logger.Info().Int("tick_rate", g.tickRate).Msg("Game loop started")

	for {
		select {
		case <-g.stopChan:
			g.logger.Info().Msg("Game loop stopped")
			return
		case task := <-g.tasks:
			g.run(task)
		case <-ticker.C:
			g.tick()
		}
	}
}

// Post queues task to run on the loop. It reports false once the loop has
// been stopped.
func (g *GameLoop) Post(task func()) bool {
	select {
	case <-g.stopChan:
		return false
	default:
	}

	select {
	case g.tasks <- task:
		return true
	case <-g.stopChan:
		return false
	}
}

// Stop ends the loop and waits for the task in flight to finish.
func (g *GameLoop) Stop() {
	g.stopOnce.Do(func() { close(g.stopChan) })
	if g.started.Load() {
		<-g.done
	}
}

func (g *GameLoop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().Interface("panic", r).Msg("Recovered from panic in loop task")
		}
	}()
	task()
}

func (g *GameLoop) tick() {
	g.run(g.server.tick)
}
