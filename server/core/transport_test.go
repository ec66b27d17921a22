package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leap-fish/necs/router"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mueseralex/tactical-arena-shooter/shared/messages"
)

// frames records every payload the transport writes.
type frames struct {
	mu  sync.Mutex
	got [][]byte
}

func (f *frames) write(_ context.Context, _ *router.NetworkClient, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, payload)
	return nil
}

func (f *frames) all() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.got...)
}

func TestTransport_Binding(t *testing.T) {
	tr := NewTransport(0, zerolog.Nop())
	client := &router.NetworkClient{}

	require.True(t, tr.Connected(client))
	tr.Bind(client, 7)
	id, ok := tr.ID(client)
	require.True(t, ok)
	assert.Equal(t, messages.PlayerID(7), id)
	assert.Equal(t, 1, tr.Len())

	tr.Unbind(7)
	_, ok = tr.ID(client)
	assert.False(t, ok)
	assert.Equal(t, 0, tr.Len())
	assert.False(t, tr.Admits(client), "an ended session is not reopened by late messages")

	tr.Unbind(7)

	_, bound := tr.Closed(client)
	assert.False(t, bound)
	assert.Empty(t, tr.links, "link forgotten after connect and disconnect")
}

func TestTransport_DisconnectBeforeConnect(t *testing.T) {
	tr := NewTransport(0, zerolog.Nop())
	client := &router.NetworkClient{}

	_, bound := tr.Closed(client)
	assert.False(t, bound)
	assert.False(t, tr.Admits(client))

	assert.False(t, tr.Connected(client), "a closed client never gets a session")
	assert.Empty(t, tr.links)
}

func TestTransport_SendUnbound(t *testing.T) {
	tr := NewTransport(0, zerolog.Nop())
	err := tr.Send(3, messages.Pong{})
	assert.True(t, eris.Is(err, ErrNotConnected))
}

func TestTransport_SendWritesInOrder(t *testing.T) {
	tr := NewTransport(0, zerolog.Nop())
	rec := &frames{}
	tr.write = rec.write

	client := &router.NetworkClient{}
	tr.Bind(client, 1)
	defer tr.Unbind(1)

	first := messages.Pong{ClientTime: 1}
	second := messages.Pong{ClientTime: 2}
	require.NoError(t, tr.Send(1, first))
	require.NoError(t, tr.Send(1, second))

	want1, err := router.Serialize(first)
	require.NoError(t, err)
	want2, err := router.Serialize(second)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, [][]byte{want1, want2}, rec.all())
}

func TestTransport_UnbindFlushesQueue(t *testing.T) {
	tr := NewTransport(0, zerolog.Nop())
	rec := &frames{}
	tr.write = rec.write

	tr.Bind(&router.NetworkClient{}, 1)
	for i := 0; i < 3; i++ {
		require.NoError(t, tr.Send(1, messages.JoinRejected{Reason: RejectFull}))
	}
	tr.Unbind(1)

	assert.Eventually(t, func() bool { return len(rec.all()) == 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, eris.Is(tr.Send(1, messages.Pong{}), ErrNotConnected))
}

func TestTransport_StalledClientNeverBlocksSend(t *testing.T) {
	tr := NewTransport(0, zerolog.Nop())

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	tr.write = func(ctx context.Context, _ *router.NetworkClient, _ []byte) error {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}

	tr.Bind(&router.NetworkClient{}, 1)
	defer tr.Unbind(1)
	defer close(release)

	// The writer takes the first frame and stalls on it.
	require.NoError(t, tr.Send(1, messages.Pong{}))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("writer never picked up the first frame")
	}

	done := make(chan error, 1)
	go func() {
		for i := 0; i < outboundQueueSize; i++ {
			if err := tr.Send(1, messages.Pong{}); err != nil {
				done <- err
				return
			}
		}
		done <- tr.Send(1, messages.Pong{})
	}()

	select {
	case err := <-done:
		assert.True(t, eris.Is(err, ErrSlowClient))
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a stalled client")
	}
}
