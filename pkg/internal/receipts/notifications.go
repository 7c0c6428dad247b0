package receipts

import (
	"context"
	"sort"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/rs/zerolog/log"
)

// DecodeNotifications reads the notification node of a user, newest first.
func DecodeNotifications(snapshot realtime.Snapshot) []models.AppNotification {
	var out []models.AppNotification
	for _, child := range snapshot.Children {
		var item models.AppNotification
		if err := child.Decode(&item); err != nil {
			log.Warn().Err(err).Str("path", child.Path).Msg("Skipped a malformed notification...")
			continue
		}
		if len(item.ID) == 0 {
			item.ID = child.Key
		}
		if len(item.Type) == 0 {
			item.Type = models.NotificationUnknown
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// MarkNotificationsRead flags every unread notification of the user in one
// batch. It returns how many were marked.
func MarkNotificationsRead(ctx context.Context, tree realtime.Tree, userId string, items []models.AppNotification) (int, error) {
	updates := make(map[string]any)
	for _, item := range items {
		if item.Read {
			continue
		}
		updates[models.JoinPath("notifications", userId, item.ID, "read")] = true
	}
	if len(updates) == 0 {
		return 0, nil
	}
	if err := tree.Update(ctx, updates); err != nil {
		return 0, err
	}
	return len(updates), nil
}
