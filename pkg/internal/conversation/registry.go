package conversation

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var ErrNotOpen = errors.New("conversation is not open")

// Factory builds an unopened conversation for a channel.
type Factory func(channelId string) *Conversation

// Registry keeps the conversations currently on screen, one per channel.
type Registry struct {
	factory Factory

	mu    sync.Mutex
	items map[string]*Conversation
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		items:   make(map[string]*Conversation),
	}
}

// Open returns the conversation of channelId, opening it when needed.
func (v *Registry) Open(channelId string) (*Conversation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if conv, ok := v.items[channelId]; ok {
		return conv, nil
	}
	conv := v.factory(channelId)
	if err := conv.Open(); err != nil {
		conv.Close()
		return nil, err
	}
	v.items[channelId] = conv
	return conv, nil
}

func (v *Registry) Get(channelId string) (*Conversation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if conv, ok := v.items[channelId]; ok {
		return conv, nil
	}
	return nil, ErrNotOpen
}

// Close tears the conversation down. Closing an unknown channel is a no-op.
func (v *Registry) Close(channelId string) {
	v.mu.Lock()
	conv, ok := v.items[channelId]
	delete(v.items, channelId)
	v.mu.Unlock()
	if ok {
		conv.Close()
	}
}

func (v *Registry) CloseAll() {
	v.mu.Lock()
	items := lo.Values(v.items)
	v.items = make(map[string]*Conversation)
	v.mu.Unlock()

	for _, conv := range items {
		conv.Close()
	}
	if len(items) > 0 {
		log.Info().Int("count", len(items)).Msg("Closed all open conversations...")
	}
}

func (v *Registry) Channels() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := lo.Keys(v.items)
	sort.Strings(out)
	return out
}
