package channels

import (
	"sort"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Feed is the home screen channel list of one user.
type Feed struct {
	Groups []models.Channel       `json:"groups"`
	Direct []models.PersonalChat `json:"direct"`
	Unread map[string]int        `json:"unread"`
}

// DecodeChannels reads every channel under the channels node. Malformed
// children are skipped.
func DecodeChannels(snapshot realtime.Snapshot) []models.Channel {
	out := make([]models.Channel, 0, len(snapshot.Children))
	for _, child := range snapshot.Children {
		raw, err := child.Raw()
		if err != nil {
			continue
		}
		channel, err := models.DecodeChannel(child.Key, raw)
		if err != nil {
			log.Warn().Err(err).Str("channel", child.Key).Msg("Skipped a malformed channel...")
			continue
		}
		out = append(out, channel)
	}
	return out
}

// BuildFeed splits the channels the user belongs to into groups and
// direct chats. Hidden direct chats stay out until a newer message arrives.
// OtherUser is left for the caller to resolve.
func BuildFeed(channels []models.Channel, me string) Feed {
	feed := Feed{
		Groups: make([]models.Channel, 0),
		Direct: make([]models.PersonalChat, 0),
		Unread: make(map[string]int),
	}

	for _, channel := range channels {
		if !channel.IsMember(me) {
			continue
		}
		if !channel.IsPersonal {
			feed.Groups = append(feed.Groups, channel)
			continue
		}
		if !channel.VisibleTo(me) {
			continue
		}
		peer, ok := channel.Peer(me)
		if !ok {
			continue
		}
		feed.Direct = append(feed.Direct, models.PersonalChat{
			ChannelID:   channel.ID,
			PeerID:      peer,
			LastMessage: channel.LastMessage,
			Timestamp:   channel.LastMessageTimestamp,
			IsMuted:     channel.IsMutedBy(me),
		})
	}

	sort.SliceStable(feed.Groups, func(i, j int) bool {
		a, b := feed.Groups[i], feed.Groups[j]
		if a.LastMessageTimestamp != b.LastMessageTimestamp {
			return a.LastMessageTimestamp > b.LastMessageTimestamp
		}
		return a.ID < b.ID
	})
	sort.SliceStable(feed.Direct, func(i, j int) bool {
		a, b := feed.Direct[i], feed.Direct[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}
		return a.ChannelID < b.ChannelID
	})
	return feed
}

// ChannelIDs lists every channel of the feed, groups first.
func (v Feed) ChannelIDs() []string {
	ids := lo.Map(v.Groups, func(item models.Channel, _ int) string {
		return item.ID
	})
	return append(ids, lo.Map(v.Direct, func(item models.PersonalChat, _ int) string {
		return item.ChannelID
	})...)
}

// PeerIDs lists the users a feed needs profiles for.
func (v Feed) PeerIDs() []string {
	return lo.Uniq(lo.Map(v.Direct, func(item models.PersonalChat, _ int) string {
		return item.PeerID
	}))
}

// Attach fills in the resolved peer profiles.
func (v Feed) Attach(users map[string]models.User) Feed {
	for idx := range v.Direct {
		if user, ok := users[v.Direct[idx].PeerID]; ok {
			v.Direct[idx].OtherUser = lo.ToPtr(user)
		}
	}
	return v
}
