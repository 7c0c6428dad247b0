package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/metrics"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var (
	ErrAlreadySubscribed = errors.New("path already subscribed")
	ErrClosed            = errors.New("subscription closed")
)

// Manager owns the live queries of one screen. Each path is watched at
// most once, and closing the manager detaches all of them.
type Manager struct {
	tree realtime.Tree

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

func NewManager(tree realtime.Tree) *Manager {
	return &Manager{
		tree: tree,
		subs: make(map[string]*Subscription),
	}
}

func (v *Manager) Subscribe(path string, query realtime.Query) (*Subscription, error) {
	path = realtime.CleanPath(path)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, ErrClosed
	}
	if _, ok := v.subs[path]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubscribed, path)
	}

	sub := newSubscription(path, func() {
		v.mu.Lock()
		delete(v.subs, path)
		v.mu.Unlock()
	})
	sub.registration = v.tree.Watch(path, query, sub)
	v.subs[path] = sub
	metrics.ActiveSubscriptions.Inc()

	log.Debug().Str("path", path).Msg("Attached live query...")
	return sub, nil
}

// Paths lists the watched paths.
func (v *Manager) Paths() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return lo.Keys(v.subs)
}

// Close detaches every subscription. No snapshot is delivered after it returns.
func (v *Manager) Close() {
	v.mu.Lock()
	v.closed = true
	subs := lo.Values(v.subs)
	v.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// Subscription is a stream of full snapshots of one path. A consumer that
// falls behind only sees the newest snapshot, never a partial one.
type Subscription struct {
	path         string
	registration realtime.Registration
	detach       func()

	mu       sync.Mutex
	latest   *realtime.Snapshot
	err      error
	reported bool
	closed   bool
	signal   chan struct{}
	done     chan struct{}
}

func newSubscription(path string, detach func()) *Subscription {
	return &Subscription{
		path:   path,
		detach: detach,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (v *Subscription) Path() string {
	return v.path
}

func (v *Subscription) OnSnapshot(snapshot realtime.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.latest = &snapshot
	select {
	case v.signal <- struct{}{}:
	default:
	}
}

// OnError records the failure once. The stream stays open, the backend
// keeps retrying on its own.
func (v *Subscription) OnError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.reported {
		return
	}
	v.err = err
	v.reported = true
	metrics.SubscriptionErrors.Inc()
	log.Warn().Err(err).Str("path", v.path).Msg("An error occurred when listening to the realtime store...")
}

// Err returns the listener error reported for this subscription, if any.
func (v *Subscription) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Next blocks until a snapshot newer than the last one returned is available.
func (v *Subscription) Next(ctx context.Context) (realtime.Snapshot, error) {
	for {
		v.mu.Lock()
		if v.closed {
			v.mu.Unlock()
			return realtime.Snapshot{}, ErrClosed
		}
		if v.latest != nil {
			snapshot := *v.latest
			v.latest = nil
			v.mu.Unlock()
			metrics.SnapshotsDelivered.Inc()
			return snapshot, nil
		}
		v.mu.Unlock()

		select {
		case <-ctx.Done():
			return realtime.Snapshot{}, ctx.Err()
		case <-v.done:
			return realtime.Snapshot{}, ErrClosed
		case <-v.signal:
		}
	}
}

// Each calls fn for every snapshot until the subscription closes or ctx ends.
func (v *Subscription) Each(ctx context.Context, fn func(realtime.Snapshot)) error {
	for {
		snapshot, err := v.Next(ctx)
		if errors.Is(err, ErrClosed) {
			return nil
		} else if err != nil {
			return err
		}
		fn(snapshot)
	}
}

// Close unregisters the listener synchronously. Calling it twice is fine.
func (v *Subscription) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.latest = nil
	close(v.done)
	v.mu.Unlock()

	if v.registration != nil {
		v.registration.Remove()
	}
	if v.detach != nil {
		v.detach()
	}
	metrics.ActiveSubscriptions.Dec()
	log.Debug().Str("path", v.path).Msg("Detached live query...")
}
