package receipts

import (
	"context"
	"sort"
	"sync"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/metrics"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Unread lists the messages written by others that me has not seen yet.
func Unread(messages []models.Message, me string) []models.Message {
	return lo.Filter(messages, func(item models.Message, _ int) bool {
		return item.SenderID != me && !item.SeenBy.Has(me)
	})
}

// UnreadCount is the badge number of a channel.
func UnreadCount(messages []models.Message, me string) int {
	return len(Unread(messages, me))
}

// Updates builds the multi-path write that adds me to each seen-by map.
// Only the entry of me is touched so other viewers survive.
func Updates(channelId string, unread []models.Message, me, name string) map[string]any {
	updates := make(map[string]any, len(unread))
	for _, message := range unread {
		updates[models.SeenByPath(channelId, message.ID, me)] = name
	}
	return updates
}

// Reconciler marks messages as seen for the local user.
type Reconciler struct {
	tree realtime.Tree
	me   string
	name string

	mu     sync.Mutex
	marked map[string]map[string]bool
}

func NewReconciler(tree realtime.Tree, me, name string) *Reconciler {
	return &Reconciler{
		tree:   tree,
		me:     me,
		name:   models.DisplayName(name),
		marked: make(map[string]map[string]bool),
	}
}

// MarkRead writes one atomic batch for the unread messages of a snapshot.
// Messages already written by this reconciler are skipped, so running it
// again before the store echoes the change writes nothing. It returns the
// number of messages marked.
func (v *Reconciler) MarkRead(ctx context.Context, channelId string, messages []models.Message) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	marked, ok := v.marked[channelId]
	if !ok {
		marked = make(map[string]bool)
		v.marked[channelId] = marked
	}

	unread := lo.Filter(Unread(messages, v.me), func(item models.Message, _ int) bool {
		return !marked[item.ID]
	})
	if len(unread) == 0 {
		return 0, nil
	}

	// The snapshot may be stale, skip messages deleted since.
	unread = lo.Filter(unread, func(item models.Message, _ int) bool {
		snapshot, err := v.tree.Get(ctx, models.MessagePath(channelId, item.ID)+"/senderId")
		return err == nil && snapshot.Exists
	})
	if len(unread) == 0 {
		return 0, nil
	}

	if err := v.tree.Update(ctx, Updates(channelId, unread, v.me, v.name)); err != nil {
		log.Warn().Err(err).Str("channel", channelId).Msg("An error occurred when marking messages as seen...")
		return 0, err
	}
	for _, message := range unread {
		marked[message.ID] = true
	}
	metrics.SeenWrites.Add(float64(len(unread)))
	return len(unread), nil
}

// Forget drops the memory of a channel, used when its screen closes.
func (v *Reconciler) Forget(channelId string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.marked, channelId)
}

// Captions places each viewer's name on the latest message of me they have
// seen. Only named marks count, the legacy boolean marks carry no name.
func Captions(messages []models.Message, me string) map[string][]string {
	own := lo.Filter(messages, func(item models.Message, _ int) bool {
		return item.SenderID == me
	})
	sort.SliceStable(own, func(i, j int) bool {
		return own[i].CreatedAt < own[j].CreatedAt
	})

	type furthest struct {
		messageId string
		name      string
	}
	points := make(map[string]furthest)
	for _, message := range own {
		for viewer, mark := range message.SeenBy {
			if viewer == me || mark.Legacy || len(mark.Name) == 0 {
				continue
			}
			points[viewer] = furthest{messageId: message.ID, name: mark.Name}
		}
	}

	viewers := lo.Keys(points)
	sort.Strings(viewers)
	captions := make(map[string][]string)
	for _, viewer := range viewers {
		point := points[viewer]
		captions[point.messageId] = append(captions[point.messageId], point.name)
	}
	return captions
}
