package core

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/mueseralex/tactical-arena-shooter/server/session"
	"github.com/mueseralex/tactical-arena-shooter/shared/messages"
)

var (
	ErrNotConnected = eris.New("player has no open connection")
	ErrSlowClient   = eris.New("outbound queue full")
)

const (
	outboundQueueSize = 64
	writeTimeout      = 5 * time.Second
)

// link is the transport's view of one websocket client. necs delivers the
// connect callback on its own goroutine, so connect, messages and disconnect
// can reach the game loop in any order; a link is forgotten only once both
// its connect and its disconnect have been seen.
type link struct {
	client *router.NetworkClient
	id     session.ID
	out    chan []byte

	bound     bool // has a live session
	retired   bool // session ended; the client is never admitted again
	connected bool // connect callback seen
	closed    bool // disconnect callback seen
}

// Transport owns the websocket listener and the mapping between necs network
// clients and player sessions. It implements dispatch.Sender.
//
// Outbound frames go through a bounded per-client queue drained by that
// client's writer goroutine, so a stalled socket never blocks the caller.
type Transport struct {
	port   uint
	ws     *transports.WsServerTransport
	logger zerolog.Logger

	// write delivers one frame; replaced in tests.
	write func(ctx context.Context, client *router.NetworkClient, payload []byte) error

	mu    sync.RWMutex
	links map[*router.NetworkClient]*link
	peers map[session.ID]*link
}

func NewTransport(port uint, logger zerolog.Logger) *Transport {
	return &Transport{
		port:   port,
		logger: logger.With().Str("component", "transport").Logger(),
		write:  writeFrame,
		links:  make(map[*router.NetworkClient]*link),
		peers:  make(map[session.ID]*link),
	}
}

func writeFrame(ctx context.Context, client *router.NetworkClient, payload []byte) error {
	return client.Write(ctx, websocket.MessageBinary, payload)
}

// Listen starts the websocket server. It blocks until the listener fails.
func (t *Transport) Listen() error {
	t.ws = transports.NewWsServerTransport(t.port, "", nil)
	return eris.Wrapf(t.ws.Start(), "failed to listen on port %d", t.port)
}

// entry returns the client's link, creating it on first sight. Callers hold mu.
func (t *Transport) entry(client *router.NetworkClient) *link {
	l, ok := t.links[client]
	if !ok {
		l = &link{client: client}
		t.links[client] = l
	}
	return l
}

// forget drops a link once nothing more can arrive for it. Callers hold mu.
func (t *Transport) forget(l *link) {
	if l.connected && l.closed && !l.bound {
		delete(t.links, l.client)
	}
}

// Connected records the connect callback. It reports whether the client
// still needs a session.
func (t *Transport) Connected(client *router.NetworkClient) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.entry(client)
	l.connected = true
	if l.closed {
		t.forget(l)
		return false
	}
	return !l.bound && !l.retired
}

// Admits reports whether a message from an unbound client may open a
// session: false once the client has closed or its session has ended.
func (t *Transport) Admits(client *router.NetworkClient) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	l, ok := t.links[client]
	return !ok || (!l.closed && !l.retired)
}

// Closed records the disconnect callback and returns the session still bound
// to the client, if any.
func (t *Transport) Closed(client *router.NetworkClient) (session.ID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.entry(client)
	l.closed = true
	if l.bound {
		return l.id, true
	}
	t.forget(l)
	return 0, false
}

// Bind associates a network client with a session and starts its writer.
func (t *Transport) Bind(client *router.NetworkClient, id session.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.entry(client)
	l.id = id
	l.bound = true
	l.out = make(chan []byte, outboundQueueSize)
	t.peers[id] = l

	go t.drain(l.client, id, l.out)
}

// Unbind ends the session's link. Frames already queued are still written,
// then the socket is closed. Later messages from the client are ignored.
func (t *Transport) Unbind(id session.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.peers[id]
	if !ok {
		return
	}
	delete(t.peers, id)

	l.bound = false
	l.retired = true
	close(l.out)
	t.forget(l)
}

// ID returns the session bound to client.
func (t *Transport) ID(client *router.NetworkClient) (session.ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	l, ok := t.links[client]
	if !ok || !l.bound {
		return 0, false
	}
	return l.id, true
}

// Send serializes msg and queues it for the player's writer. It never blocks:
// a full queue drops the frame with ErrSlowClient.
func (t *Transport) Send(id session.ID, msg messages.Outbound) error {
	payload, err := router.Serialize(msg)
	if err != nil {
		return eris.Wrapf(err, "failed to serialize %T", msg)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	l, ok := t.peers[id]
	if !ok {
		return eris.Wrapf(ErrNotConnected, "player %d", id)
	}
	select {
	case l.out <- payload:
		return nil
	default:
		return eris.Wrapf(ErrSlowClient, "dropping %T to player %d", msg, id)
	}
}

// Len returns the number of bound clients.
func (t *Transport) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

// drain writes queued frames until the queue is closed or a write fails,
// then hangs up. A failed write leaves the rest of the queue unread; the
// resulting disconnect unbinds the session.
func (t *Transport) drain(client *router.NetworkClient, id session.ID, out <-chan []byte) {
	defer hangUp(client)

	for payload := range out {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := t.write(ctx, client, payload)
		cancel()
		if err != nil {
			t.logger.Debug().Err(err).Uint64("player_id", uint64(id)).Msg("Write failed, closing connection")
			return
		}
	}
}

func hangUp(client *router.NetworkClient) {
	if client.Conn == nil {
		return
	}
	_ = client.Close(websocket.StatusNormalClosure, "")
}
