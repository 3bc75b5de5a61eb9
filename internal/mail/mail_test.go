package mail

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu   sync.Mutex
	got  []Message
	fail bool
	gate chan struct{}
}

func (s *recordingSender) Send(_ context.Context, m Message) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, m)
	if s.fail {
		return errors.New("smtp down")
	}
	return nil
}

func TestDispatcherDeliversOnClose(t *testing.T) {
	s := &recordingSender{}
	d := NewDispatcher(s, zap.NewNop().Sugar(), 8, 2)

	d.Enqueue(Message{To: "a@x.com", Template: EmailVerification})
	d.Enqueue(Message{To: "b@x.com", Template: PasswordReset})
	d.Close()

	assert.Len(t, s.got, 2)
	// closed dispatcher ignores new work
	d.Enqueue(Message{To: "c@x.com"})
	assert.Len(t, s.got, 2)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	s := &recordingSender{gate: make(chan struct{})}
	d := NewDispatcher(s, zap.NewNop().Sugar(), 1, 1)

	for i := 0; i < 5; i++ {
		d.Enqueue(Message{To: "a@x.com"})
	}
	assert.GreaterOrEqual(t, d.Dropped(), uint64(3))
	close(s.gate)
	d.Close()
}

func TestDispatcherSendErrorIsSwallowed(t *testing.T) {
	s := &recordingSender{fail: true}
	d := NewDispatcher(s, zap.NewNop().Sugar(), 1, 1)
	d.Enqueue(Message{To: "a@x.com"})
	d.Close()
	assert.Len(t, s.got, 1)
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	d.Enqueue(Message{})
	d.Close()
	assert.Zero(t, d.Dropped())
}

func TestLang(t *testing.T) {
	assert.Equal(t, "de", Lang("de-DE,de;q=0.9"))
	assert.Equal(t, "en", Lang("fr"))
	assert.Equal(t, "en", Lang(""))
}
