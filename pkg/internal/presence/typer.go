package presence

import (
	"context"
	"strings"
	"sync"
	"time"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

const DefaultTypingTimeout = 3 * time.Second

type State uint8

const (
	StateIdle = State(iota)
	StateTyping
)

func (v State) String() string {
	if v == StateTyping {
		return "typing"
	}
	return "idle"
}

type TyperOption func(*Typer)

func WithClock(clk clock.Clock) TyperOption {
	return func(v *Typer) {
		v.clock = clk
	}
}

func WithTimeout(timeout time.Duration) TyperOption {
	return func(v *Typer) {
		v.timeout = timeout
	}
}

// Typer drives the typing flag of one user in one channel. Every keystroke
// rewrites the flag and restarts the inactivity timer, so at most one timer
// is pending at a time.
type Typer struct {
	tree      realtime.Tree
	clock     clock.Clock
	timeout   time.Duration
	channelId string
	userId    string
	name      string

	mu         sync.Mutex
	state      State
	generation uint64
	timer      *clock.Timer
	registered bool
}

func NewTyper(tree realtime.Tree, channelId, userId, name string, opts ...TyperOption) *Typer {
	typer := &Typer{
		tree:      tree,
		clock:     clock.New(),
		timeout:   DefaultTypingTimeout,
		channelId: channelId,
		userId:    userId,
		name:      models.DisplayName(name),
	}
	for _, opt := range opts {
		opt(typer)
	}
	return typer
}

func (v *Typer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Input handles a change of the composed text. Empty input clears the flag.
func (v *Typer) Input(ctx context.Context, text string) error {
	if len(strings.TrimSpace(text)) == 0 {
		return v.Stop(ctx)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	path := models.TypingPath(v.channelId, v.userId)
	if !v.registered {
		if err := v.tree.OnDisconnectRemove(path); err != nil {
			log.Warn().Err(err).Str("channel", v.channelId).Msg("An error occurred when registering typing cleanup...")
		} else {
			v.registered = true
		}
	}
	if err := v.tree.Set(ctx, path, v.name); err != nil {
		return err
	}

	v.state = StateTyping
	v.generation++
	generation := v.generation
	if v.timer != nil {
		v.timer.Stop()
	}
	v.timer = v.clock.AfterFunc(v.timeout, func() {
		v.expire(generation)
	})
	return nil
}

// Sent clears the flag after a message went out.
func (v *Typer) Sent(ctx context.Context) error {
	return v.Stop(ctx)
}

// Stop clears the flag immediately and cancels the pending timer.
func (v *Typer) Stop(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clear(ctx)
}

func (v *Typer) expire(generation uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if generation != v.generation {
		return
	}
	if err := v.clear(context.Background()); err != nil {
		log.Warn().Err(err).Str("channel", v.channelId).Msg("An error occurred when clearing typing status...")
	}
}

// clear must be called with mu held.
func (v *Typer) clear(ctx context.Context) error {
	v.generation++
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	if v.state == StateIdle {
		return nil
	}
	v.state = StateIdle
	return v.tree.Remove(ctx, models.TypingPath(v.channelId, v.userId))
}
