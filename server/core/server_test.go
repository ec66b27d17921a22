package core

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/leap-fish/necs/router"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mueseralex/tactical-arena-shooter/config"
	"github.com/mueseralex/tactical-arena-shooter/server/dispatch/dispatchtest"
	"github.com/mueseralex/tactical-arena-shooter/server/match/matchtest"
	"github.com/mueseralex/tactical-arena-shooter/server/session"
	"github.com/mueseralex/tactical-arena-shooter/shared/gamemath"
	"github.com/mueseralex/tactical-arena-shooter/shared/messages"
)

type testServer struct {
	*Server
	clock matchtest.Clock
	sched *matchtest.Scheduler
	rec   *dispatchtest.Recorder
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		Port:        7373,
		TickRate:    20,
		Name:        "test arena",
		MaxPlayers:  8,
		IdleTimeout: 30 * time.Second,
		ArenaMap:    "foundry",
		Region:      "local",
		LogLevel:    "info",
		LogFormat:   config.LogFormatJSON,
	}
}

func newTestServer(t *testing.T, cfg config.ServerConfig) *testServer {
	t.Helper()

	clock := clockwork.NewFakeClock()
	sched := matchtest.NewScheduler(clock)
	rec := dispatchtest.NewRecorder()

	s, err := NewServer(Options{
		Config: cfg,
		Rules:  config.Match,
		Weapon: config.Weapon,
		Logger: zerolog.Nop(),
		Clock:  clock,
		Sender: rec,
		Timers: sched,
	})
	require.NoError(t, err)

	return &testServer{Server: s, clock: clock, sched: sched, rec: rec}
}

func (ts *testServer) join(t *testing.T, name string) session.ID {
	t.Helper()
	id := ts.connect()
	ts.handleMessage(id, messages.Hello{Name: name})
	welcome := dispatchtest.OfTo[messages.Welcome](ts.rec, id)
	require.Len(t, welcome, 1)
	return id
}

// pair joins two players and queues both for 1v1.
func (ts *testServer) pair(t *testing.T) (a, b session.ID, matchID string) {
	t.Helper()
	a, b = ts.join(t, "a"), ts.join(t, "b")
	ts.handleMessage(a, messages.RequestMatchmaking{Mode: "1v1"})
	ts.handleMessage(b, messages.RequestMatchmaking{Mode: "1v1"})

	found := dispatchtest.OfTo[messages.MatchFound](ts.rec, a)
	require.Len(t, found, 1)
	return a, b, found[0].MatchID
}

func TestNewServer_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.TickRate = 0

	_, err := NewServer(Options{Config: cfg, Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestHandshake(t *testing.T) {
	ts := newTestServer(t, testConfig())

	id := ts.connect()
	ts.handleMessage(id, messages.RequestMatchmaking{Mode: "1v1"})
	_, queued := ts.queue.Ticket(id)
	assert.False(t, queued, "messages before hello are dropped")

	ts.handleMessage(id, messages.Hello{Version: "1.0.0"})

	welcome := dispatchtest.OfTo[messages.Welcome](ts.rec, id)
	require.Len(t, welcome, 1)
	assert.Equal(t, id, welcome[0].PlayerID)
	assert.Equal(t, "test arena", welcome[0].ServerName)
	assert.Equal(t, 20, welcome[0].TickRate)
	assert.Equal(t, []string{"1v1"}, welcome[0].Modes)

	p, ok := ts.registry.Get(id)
	require.True(t, ok)
	assert.True(t, p.Joined())
	assert.Equal(t, "player-1", p.Name())

	ts.handleMessage(id, messages.Hello{Name: "again"})
	assert.Len(t, dispatchtest.OfTo[messages.Welcome](ts.rec, id), 1, "repeated hello ignored")
}

func TestHandshake_VersionMismatch(t *testing.T) {
	cfg := testConfig()
	cfg.RequiredVersion = "2.0.0"
	ts := newTestServer(t, cfg)

	id := ts.connect()
	ts.handleMessage(id, messages.Hello{Version: "1.0.0"})

	rejected := dispatchtest.OfTo[messages.JoinRejected](ts.rec, id)
	require.Len(t, rejected, 1)
	assert.Equal(t, RejectVersion, rejected[0].Reason)

	_, ok := ts.registry.Get(id)
	assert.False(t, ok, "rejected players are disconnected")
}

func TestHandshake_ServerFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 1
	ts := newTestServer(t, cfg)

	ts.join(t, "first")

	id := ts.connect()
	ts.handleMessage(id, messages.Hello{Name: "second"})

	rejected := dispatchtest.OfTo[messages.JoinRejected](ts.rec, id)
	require.Len(t, rejected, 1)
	assert.Equal(t, RejectFull, rejected[0].Reason)
	assert.Equal(t, 1, ts.registry.Len())
}

func TestMatchmaking_PairsAndNotifies(t *testing.T) {
	ts := newTestServer(t, testConfig())
	a, b := ts.join(t, "a"), ts.join(t, "b")

	ts.handleMessage(a, messages.RequestMatchmaking{Mode: " 1V1 "})
	status := dispatchtest.OfTo[messages.QueueStatus](ts.rec, a)
	require.Len(t, status, 1)
	assert.Equal(t, messages.QueueStatus{Mode: "1v1", Searching: true, Waiting: 1}, status[0])
	assert.Equal(t, 1, ts.Stats().Queued)

	// Idempotent while waiting.
	ts.handleMessage(a, messages.RequestMatchmaking{Mode: "1v1"})
	assert.Equal(t, 1, ts.queue.Total())

	ts.handleMessage(b, messages.RequestMatchmaking{Mode: "1v1"})

	for _, id := range []session.ID{a, b} {
		found := dispatchtest.OfTo[messages.MatchFound](ts.rec, id)
		require.Len(t, found, 1)
		assert.Equal(t, []messages.PlayerID{a, b}, found[0].Players)
	}
	assert.Empty(t, dispatchtest.OfTo[messages.QueueStatus](ts.rec, b), "paired at once")
	assert.Equal(t, 0, ts.queue.Total())

	st := ts.Stats()
	assert.Equal(t, 2, st.Players)
	assert.Equal(t, 0, st.Queued)
	assert.Equal(t, 1, st.Matches)
	assert.Equal(t, uint64(1), st.MatchesPlayed)

	// In a match: further requests are ignored.
	ts.handleMessage(a, messages.RequestMatchmaking{Mode: "1v1"})
	assert.Equal(t, 0, ts.queue.Total())
}

func TestMatchmaking_UnsupportedModeAndCancel(t *testing.T) {
	ts := newTestServer(t, testConfig())
	a := ts.join(t, "a")

	ts.handleMessage(a, messages.RequestMatchmaking{Mode: "ctf"})
	assert.Equal(t, 0, ts.queue.Total())
	status := dispatchtest.OfTo[messages.QueueStatus](ts.rec, a)
	require.Len(t, status, 1)
	assert.False(t, status[0].Searching)

	ts.handleMessage(a, messages.RequestMatchmaking{Mode: "1v1"})
	ts.handleMessage(a, messages.CancelMatchmaking{})
	assert.Equal(t, 0, ts.queue.Total())

	status = dispatchtest.OfTo[messages.QueueStatus](ts.rec, a)
	require.Len(t, status, 3)
	assert.Equal(t, messages.QueueStatus{Mode: "1v1"}, status[2])

	ts.handleMessage(a, messages.CancelMatchmaking{})
	assert.Len(t, dispatchtest.OfTo[messages.QueueStatus](ts.rec, a), 3, "cancel without a ticket is a no-op")
}

func TestHeartbeat(t *testing.T) {
	ts := newTestServer(t, testConfig())
	id := ts.connect()

	ts.handleMessage(id, messages.Heartbeat{ClientTime: 42})

	pongs := dispatchtest.OfTo[messages.Pong](ts.rec, id)
	require.Len(t, pongs, 1)
	assert.Equal(t, int64(42), pongs[0].ClientTime)
	assert.Equal(t, ts.clock.Now().UnixMilli(), pongs[0].ServerTime)
}

func TestMalformedMessagesDropped(t *testing.T) {
	ts := newTestServer(t, testConfig())
	a, b, matchID := ts.pair(t)
	ts.sched.Advance(config.Match.FirstRoundDelay)
	ts.rec.Reset()

	ts.handleMessage(a, messages.ReportShot{MatchID: matchID})
	ts.handleMessage(a, nil)
	ts.handleMessage(a, messages.RequestMatchmaking{Mode: ""})

	assert.Empty(t, ts.rec.All())
	p, _ := ts.registry.Get(b)
	assert.Equal(t, config.Match.MaxHealth, p.Health())
}

func TestMatchFlow_ShotThroughServer(t *testing.T) {
	ts := newTestServer(t, testConfig())
	a, b, matchID := ts.pair(t)
	ts.sched.Advance(config.Match.FirstRoundDelay)

	pa, _ := ts.registry.Get(a)
	pb, _ := ts.registry.Get(b)
	aim := pb.Position().Sub(pa.Position())
	aim.Y = 1.65 // head height at the target

	ts.handleMessage(a, messages.ReportShot{MatchID: matchID, Aim: aim})

	hits := dispatchtest.OfTo[messages.HitEvent](ts.rec, b)
	require.Len(t, hits, 1)
	assert.True(t, hits[0].Headshot)
	assert.Equal(t, 0, hits[0].TargetHealth)

	ends := dispatchtest.OfTo[messages.RoundEnd](ts.rec, b)
	require.Len(t, ends, 1)
	assert.Equal(t, a, ends[0].Winner)
}

func TestPositionRelay(t *testing.T) {
	ts := newTestServer(t, testConfig())
	a, b, matchID := ts.pair(t)
	ts.sched.Advance(config.Match.FirstRoundDelay)

	pa, _ := ts.registry.Get(a)
	to := pa.Position().Add(gamemath.Vec3{X: 1})
	ts.handleMessage(a, messages.ReportPosition{MatchID: matchID, Position: to, Orientation: gamemath.Vec3{X: 1}})

	updates := dispatchtest.OfTo[messages.PositionUpdate](ts.rec, b)
	require.Len(t, updates, 1)
	assert.Equal(t, to, updates[0].Position)
}

func TestDisconnect_ForfeitsAndDequeues(t *testing.T) {
	ts := newTestServer(t, testConfig())
	a, b, _ := ts.pair(t)
	ts.sched.Advance(config.Match.FirstRoundDelay)

	c := ts.join(t, "c")
	ts.handleMessage(c, messages.RequestMatchmaking{Mode: "1v1"})
	require.Equal(t, 1, ts.queue.Total())

	ts.disconnect(b, "closed")
	ts.disconnect(c, "closed")

	ends := dispatchtest.OfTo[messages.MatchEnd](ts.rec, a)
	require.Len(t, ends, 1)
	assert.Equal(t, a, ends[0].Winner)
	assert.Equal(t, messages.ReasonForfeit, ends[0].Reason)

	assert.Equal(t, 0, ts.queue.Total())
	st := ts.Stats()
	assert.Equal(t, 1, st.Players)
	assert.Equal(t, 0, st.Matches)

	// Disconnecting twice is harmless.
	ts.disconnect(b, "closed")
}

func TestTick_IdleSweep(t *testing.T) {
	ts := newTestServer(t, testConfig())
	quiet := ts.join(t, "quiet")
	chatty := ts.join(t, "chatty")

	ts.sched.Advance(20 * time.Second)
	ts.handleMessage(chatty, messages.Heartbeat{})

	ts.sched.Advance(10 * time.Second)
	ts.tick()

	_, ok := ts.registry.Get(quiet)
	assert.False(t, ok, "idle player swept")
	_, ok = ts.registry.Get(chatty)
	assert.True(t, ok)
	assert.Equal(t, 1, ts.Stats().Players)
}

func TestUnknownPlayerMessagesIgnored(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.handleMessage(99, messages.Hello{})
	assert.Empty(t, ts.rec.All())
}

func TestRouting_MessageBeforeConnect(t *testing.T) {
	ts := newTestServer(t, testConfig())
	client := &router.NetworkClient{}

	ts.onMessage(client, messages.Hello{Name: "early"})
	ts.onConnect(client)

	assert.Equal(t, 1, ts.registry.Len(), "the late connect does not open a second session")
	id, ok := ts.transport.ID(client)
	require.True(t, ok)
	welcome := dispatchtest.OfTo[messages.Welcome](ts.rec, id)
	require.Len(t, welcome, 1)
	assert.Equal(t, id, welcome[0].PlayerID)

	ts.onDisconnect(client, nil)
	assert.Equal(t, 0, ts.registry.Len())
	assert.Equal(t, 0, ts.transport.Len())
}

func TestRouting_DisconnectBeforeConnect(t *testing.T) {
	ts := newTestServer(t, testConfig())
	client := &router.NetworkClient{}

	ts.onDisconnect(client, nil)
	ts.onConnect(client)

	assert.Equal(t, 0, ts.registry.Len(), "no orphaned session")
	assert.Equal(t, 0, ts.transport.Len())
}

func TestRouting_MessagesAfterSessionEndAreIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.RequiredVersion = "2.0.0"
	ts := newTestServer(t, cfg)
	client := &router.NetworkClient{}

	ts.onConnect(client)
	ts.onMessage(client, messages.Hello{Version: "1.0.0"})
	require.Equal(t, 0, ts.registry.Len(), "rejected join ends the session")

	ts.onMessage(client, messages.Hello{Version: "2.0.0"})
	assert.Equal(t, 0, ts.registry.Len())
	assert.Empty(t, dispatchtest.Of[messages.Welcome](ts.rec))
}
