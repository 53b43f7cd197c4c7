// Package job contains queue policies shared by the job repository and the
// runners that drain it.
package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/target/esg-pipeline/internal/domain/model"
)

// ErrWaiterRequired indicates a notifier cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter blocks until the store signals that jobs of a type were added.
type Waiter interface {
	WaitForNotification(ctx context.Context, jobType model.JobType) error
}

// Notifier fans job-available signals out to idle workers.
type Notifier interface {
	Subscribe(jobType model.JobType) (func(), <-chan struct{})
	// Kick wakes local subscribers without waiting for the store.
	Kick(jobType model.JobType)
	StopAll()
}

// NotifierOptions configure NewNotifier.
type NotifierOptions struct {
	Waiter Waiter
	// WaitWindow bounds one LISTEN round so idle workers still poll.
	WaitWindow time.Duration
	// Backoff is the pause after a failed wait.
	Backoff time.Duration
}

type topic struct {
	cancel context.CancelFunc
	subs   map[chan struct{}]struct{}
}

// DefaultNotifier runs one listener goroutine per subscribed job type.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration

	mu     sync.Mutex
	topics map[model.JobType]*topic
}

// NewNotifier constructs the default notifier implementation.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}
	n := &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: opts.WaitWindow,
		backoff:    opts.Backoff,
		topics:     make(map[model.JobType]*topic),
	}
	if n.waitWindow <= 0 {
		n.waitWindow = time.Minute
	}
	if n.backoff <= 0 {
		n.backoff = 250 * time.Millisecond
	}
	return n, nil
}

// Subscribe registers a buffered wakeup channel. The returned func removes
// the subscription and closes the channel; the last unsubscribe of a type
// stops its listener.
func (n *DefaultNotifier) Subscribe(jobType model.JobType) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	tp, ok := n.topics[jobType]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		tp = &topic{cancel: cancel, subs: make(map[chan struct{}]struct{})}
		n.topics[jobType] = tp
		go n.listen(ctx, jobType)
	}

	ch := make(chan struct{}, 1)
	tp.subs[ch] = struct{}{}

	var once sync.Once
	unsub := func() {
		once.Do(func() { n.remove(jobType, ch) })
	}
	return unsub, ch
}

// Kick signals every subscriber of jobType.
func (n *DefaultNotifier) Kick(jobType model.JobType) {
	n.signal(jobType)
}

// StopAll stops all listeners and closes every subscriber channel.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for jobType, tp := range n.topics {
		tp.cancel()
		for ch := range tp.subs {
			drainAndClose(ch)
		}
		delete(n.topics, jobType)
	}
}

func (n *DefaultNotifier) remove(jobType model.JobType, ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	tp, ok := n.topics[jobType]
	if !ok {
		return
	}
	if _, subscribed := tp.subs[ch]; !subscribed {
		return
	}
	delete(tp.subs, ch)
	drainAndClose(ch)
	if len(tp.subs) == 0 {
		tp.cancel()
		delete(n.topics, jobType)
	}
}

func (n *DefaultNotifier) listen(ctx context.Context, jobType model.JobType) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForNotification(waitCtx, jobType)
		cancel()

		// A timed-out window also wakes workers so they re-poll.
		n.signal(jobType)

		if err == nil || ctx.Err() != nil {
			continue
		}
		timer := time.NewTimer(n.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (n *DefaultNotifier) signal(jobType model.JobType) {
	n.mu.Lock()
	defer n.mu.Unlock()

	tp, ok := n.topics[jobType]
	if !ok {
		return
	}
	for ch := range tp.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// drainAndClose empties the buffer so receivers observe the close at once.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}

var _ Notifier = (*DefaultNotifier)(nil)
