package mail

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Dispatcher forwards queued messages to a Sender on background workers.
// Send failures are logged and dropped.
type Dispatcher struct {
	sender  Sender
	logger  *zap.SugaredLogger
	timeout time.Duration

	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewDispatcher(sender Sender, logger *zap.SugaredLogger, buffer, workers int) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		sender:  sender,
		logger:  logger,
		timeout: 10 * time.Second,
		ch:      make(chan Message, buffer),
		done:    make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case m := <-d.ch:
			d.deliver(m)
		case <-d.done:
			for {
				select {
				case m := <-d.ch:
					d.deliver(m)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(m Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.sender.Send(ctx, m); err != nil {
		d.logger.Warnw("mail send failed", "template", string(m.Template), "err", err)
	}
}

// Enqueue never blocks; a full queue drops the message.
func (d *Dispatcher) Enqueue(m Message) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- m:
	case <-d.done:
	default:
		d.dropped.Add(1)
		d.logger.Warnw("mail queue full, message dropped", "template", string(m.Template))
	}
}

// Close stops accepting messages and waits for the queue to drain.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
