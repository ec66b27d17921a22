// Package dispatchtest provides a dispatch.Sender that records deliveries.
package dispatchtest

import (
	"sync"

	"github.com/rotisserie/eris"

	"github.com/mueseralex/tactical-arena-shooter/server/session"
	"github.com/mueseralex/tactical-arena-shooter/shared/messages"
)

var ErrRefused = eris.New("delivery refused")

// Delivery is one recorded Send call.
type Delivery struct {
	To  session.ID
	Msg messages.Outbound
}

// Recorder records every successful Send. Sends to ids in Fail return
// ErrRefused and are not recorded.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	Fail       map[session.ID]bool
}

func NewRecorder() *Recorder {
	return &Recorder{Fail: make(map[session.ID]bool)}
}

func (r *Recorder) Send(id session.ID, msg messages.Outbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Fail[id] {
		return ErrRefused
	}
	r.deliveries = append(r.deliveries, Delivery{To: id, Msg: msg})
	return nil
}

// All returns every delivery in send order.
func (r *Recorder) All() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// To returns the messages delivered to id, in order.
func (r *Recorder) To(id session.ID) []messages.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []messages.Outbound
	for _, d := range r.deliveries {
		if d.To == id {
			out = append(out, d.Msg)
		}
	}
	return out
}

// Reset forgets all recorded deliveries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
}

// Of returns every recorded message of type T, in order.
func Of[T messages.Outbound](r *Recorder) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []T
	for _, d := range r.deliveries {
		if m, ok := d.Msg.(T); ok {
			out = append(out, m)
		}
	}
	return out
}

// OfTo returns the messages of type T delivered to id, in order.
func OfTo[T messages.Outbound](r *Recorder, id session.ID) []T {
	var out []T
	for _, m := range r.To(id) {
		if t, ok := m.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
