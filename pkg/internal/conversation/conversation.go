package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/presence"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/pushgw"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/receipts"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/storage"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/subscription"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyOpen   = errors.New("conversation already opened")
	ErrNotEditable   = errors.New("message cannot be edited")
	ErrNotOwner      = errors.New("message belongs to another user")
	ErrEmptyMessage  = errors.New("message is empty")
	ErrMessageAbsent = errors.New("message not found")
	ErrNoStorage     = errors.New("no object storage configured")
)

// Publisher delivers a push payload to a topic without waiting.
type Publisher interface {
	Publish(topic string, data map[string]string)
}

// TopicJoiner subscribes this device to a push topic.
type TopicJoiner interface {
	Join(topic string)
}

// SnapshotCache persists decoded state between runs.
type SnapshotCache interface {
	Put(key string, value any) error
	Get(key string, out any) (bool, error)
}

type Option func(*Conversation)

func WithClock(clk clock.Clock) Option {
	return func(v *Conversation) {
		v.clock = clk
	}
}

func WithStorage(store storage.ObjectStorage) Option {
	return func(v *Conversation) {
		v.storage = store
	}
}

func WithPublisher(publisher Publisher) Option {
	return func(v *Conversation) {
		v.publisher = publisher
	}
}

func WithTopics(topics TopicJoiner) Option {
	return func(v *Conversation) {
		v.topics = topics
	}
}

func WithCache(cache SnapshotCache) Option {
	return func(v *Conversation) {
		v.cache = cache
	}
}

func WithLocation(loc *time.Location) Option {
	return func(v *Conversation) {
		v.loc = loc
	}
}

// Conversation is the state of one open chat screen. Snapshots and user
// actions all go through mu, the only place the state is changed.
type Conversation struct {
	channelId string
	me        string
	myName    string

	tree       realtime.Tree
	clock      clock.Clock
	loc        *time.Location
	storage    storage.ObjectStorage
	publisher  Publisher
	topics     TopicJoiner
	cache      SnapshotCache
	manager    *subscription.Manager
	typer      *presence.Typer
	reconciler *receipts.Reconciler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	opened   bool
	closed   bool
	live     bool
	messages []models.Message
	channel  *models.Channel
	hiddenAt int64
	peerId   string
	typing   map[string]string
	draft    string
	reply    *models.Message
	editing  *models.Message
	expanded string
}

func New(tree realtime.Tree, channelId, me, myName string, opts ...Option) *Conversation {
	ctx, cancel := context.WithCancel(context.Background())
	v := &Conversation{
		channelId: channelId,
		me:        me,
		myName:    models.DisplayName(myName),
		tree:      tree,
		clock:     clock.New(),
		loc:       time.Local,
		ctx:       ctx,
		cancel:    cancel,
		typing:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.manager = subscription.NewManager(tree)
	v.typer = presence.NewTyper(tree, channelId, me, v.myName, presence.WithClock(v.clock))
	v.reconciler = receipts.NewReconciler(tree, me, v.myName)
	return v
}

func (v *Conversation) ChannelID() string {
	return v.channelId
}

func (v *Conversation) cacheKey() string {
	return "messages/" + v.channelId
}

// Open attaches the message, typing and channel streams, joins the push
// topic and primes the view from the offline cache.
func (v *Conversation) Open() error {
	v.mu.Lock()
	if v.opened {
		v.mu.Unlock()
		return ErrAlreadyOpen
	}
	v.opened = true
	v.mu.Unlock()

	v.prime()

	messages, err := v.manager.Subscribe(models.MessagesPath(v.channelId), realtime.Query{OrderBy: "createdAt"})
	if err != nil {
		return err
	}
	typing, err := v.manager.Subscribe(models.TypingChannelPath(v.channelId), realtime.Query{})
	if err != nil {
		v.manager.Close()
		return err
	}
	channel, err := v.manager.Subscribe(models.ChannelPath(v.channelId), realtime.Query{})
	if err != nil {
		v.manager.Close()
		return err
	}

	v.pump(channel, v.ApplyChannel)
	v.pump(messages, v.ApplyMessages)
	v.pump(typing, v.ApplyTyping)

	if v.topics != nil {
		v.topics.Join(pushgw.TopicFor(v.channelId))
	}
	return nil
}

func (v *Conversation) pump(sub *subscription.Subscription, apply func(realtime.Snapshot)) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		if err := sub.Each(v.ctx, apply); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("path", sub.Path()).Msg("An error occurred when reading conversation stream...")
		}
	}()
}

func (v *Conversation) prime() {
	if v.cache == nil {
		return
	}
	var cached []models.Message
	ok, err := v.cache.Get(v.cacheKey(), &cached)
	if err != nil {
		log.Warn().Err(err).Str("channel", v.channelId).Msg("An error occurred when reading offline messages...")
		return
	} else if !ok {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.live {
		v.messages = Order(cached)
	}
}

// Close detaches every stream and clears the typing flag. Nothing changes
// the state after it returns.
func (v *Conversation) Close() {
	v.cancel()
	v.manager.Close()
	v.wg.Wait()

	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.typer.Stop(ctx); err != nil {
		log.Warn().Err(err).Str("channel", v.channelId).Msg("An error occurred when clearing typing status...")
	}
	v.reconciler.Forget(v.channelId)
}

// ApplyMessages folds a full messages snapshot into the state and marks
// the visible unread messages as seen in the background.
func (v *Conversation) ApplyMessages(snapshot realtime.Snapshot) {
	messages := DecodeMessages(snapshot)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.messages = messages
	v.live = true
	visible := Visible(messages, v.hiddenAt)
	v.wg.Add(1)
	v.mu.Unlock()

	if v.cache != nil {
		if err := v.cache.Put(v.cacheKey(), messages); err != nil {
			log.Warn().Err(err).Str("channel", v.channelId).Msg("An error occurred when caching messages...")
		}
	}

	go func() {
		defer v.wg.Done()
		_, _ = v.reconciler.MarkRead(v.ctx, v.channelId, visible)
	}()
}

func (v *Conversation) ApplyChannel(snapshot realtime.Snapshot) {
	var channel *models.Channel
	if snapshot.Exists {
		raw, err := snapshot.Raw()
		if err == nil {
			var decoded models.Channel
			decoded, err = models.DecodeChannel(v.channelId, raw)
			channel = &decoded
		}
		if err != nil {
			log.Warn().Err(err).Str("channel", v.channelId).Msg("An error occurred when decoding channel...")
			return
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.channel = channel
	v.hiddenAt = 0
	v.peerId = ""
	if channel != nil {
		v.hiddenAt = channel.HiddenAt(v.me)
		if channel.IsPersonal {
			v.peerId, _ = channel.Peer(v.me)
		}
	}
}

func (v *Conversation) ApplyTyping(snapshot realtime.Snapshot) {
	typing := presence.Decode(snapshot, v.me)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.typing = typing
}

// Messages returns the visible messages in display order.
func (v *Conversation) Messages() []models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.Message(nil), Visible(v.messages, v.hiddenAt)...)
}

func (v *Conversation) View() View {
	v.mu.Lock()
	defer v.mu.Unlock()

	visible := Visible(v.messages, v.hiddenAt)
	captions := receipts.Captions(visible, v.me)

	view := View{
		ChannelID: v.channelId,
		PeerID:    v.peerId,
		Items:     make([]Item, 0, len(visible)),
		Draft:     v.draft,
		Stale:     !v.live,
	}
	personal := false
	if v.channel != nil {
		channel := *v.channel
		view.Channel = &channel
		personal = channel.IsPersonal
	}
	view.Typing = presence.Label(v.typing, v.me, personal)
	if v.reply != nil {
		view.ReplyingTo = models.NewReplyMeta(*v.reply)
	}
	if v.editing != nil {
		editing := *v.editing
		view.Editing = &editing
	}
	for idx, message := range visible {
		view.Items = append(view.Items, Item{
			Message:    message,
			Mine:       message.SenderID == v.me,
			DateHeader: NeedsDateHeader(visible, idx, v.loc),
			SeenBy:     captions[message.ID],
			Expanded:   message.ID == v.expanded,
		})
	}
	return view
}

// find must be called with mu held.
func (v *Conversation) find(messageId string) (models.Message, bool) {
	for _, message := range v.messages {
		if message.ID == messageId {
			return message, true
		}
	}
	return models.Message{}, false
}

// SetDraft updates the composed text and drives the typing flag.
func (v *Conversation) SetDraft(ctx context.Context, text string) {
	v.mu.Lock()
	v.draft = text
	v.mu.Unlock()

	if err := v.typer.Input(ctx, text); err != nil {
		log.Warn().Err(err).Str("channel", v.channelId).Msg("An error occurred when updating typing status...")
	}
}

// SetReplyingTo attaches the next message to messageId, empty clears it.
func (v *Conversation) SetReplyingTo(messageId string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(messageId) == 0 {
		v.reply = nil
		return nil
	}
	message, ok := v.find(messageId)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageAbsent, messageId)
	}
	v.reply = &message
	return nil
}

// StartEditing loads an own text message into the draft.
func (v *Conversation) StartEditing(messageId string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	message, ok := v.find(messageId)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageAbsent, messageId)
	}
	if message.SenderID != v.me || message.HasMedia() {
		return ErrNotEditable
	}
	v.editing = &message
	v.draft = message.Text
	return nil
}

// StopEditing leaves edit mode and keeps the composed text as the draft.
func (v *Conversation) StopEditing() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.editing = nil
}

// CancelEditing leaves edit mode and discards the edited text.
func (v *Conversation) CancelEditing() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.editing != nil {
		v.editing = nil
		v.draft = ""
	}
}

// Expand opens the action menu of a message, empty closes it.
func (v *Conversation) Expand(messageId string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expanded = messageId
}
