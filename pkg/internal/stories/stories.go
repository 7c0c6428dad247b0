package stories

import (
	"sort"
	"time"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// DecodeStories reads the stories node, keyed by author.
func DecodeStories(snapshot realtime.Snapshot) map[string][]models.Story {
	out := make(map[string][]models.Story, len(snapshot.Children))
	for _, author := range snapshot.Children {
		for _, child := range author.Children {
			var story models.Story
			if err := child.Decode(&story); err != nil {
				log.Warn().Err(err).Str("path", child.Path).Msg("Skipped a malformed story...")
				continue
			}
			if len(story.ID) == 0 {
				story.ID = child.Key
			}
			out[author.Key] = append(out[author.Key], story)
		}
	}
	return out
}

// Active keeps the unexpired stories of the listed authors. Each author's
// stories run oldest first and authors with the newest story come first.
// Authors without a resolved profile are left out.
func Active(byUser map[string][]models.Story, users map[string]models.User, authors []string, now time.Time) []models.UserStory {
	out := make([]models.UserStory, 0, len(authors))
	for _, id := range lo.Uniq(authors) {
		user, ok := users[id]
		if !ok {
			continue
		}
		alive := lo.Filter(byUser[id], func(item models.Story, _ int) bool {
			return !item.ExpiredAt(now)
		})
		if len(alive) == 0 {
			continue
		}
		sort.SliceStable(alive, func(i, j int) bool {
			return alive[i].Timestamp < alive[j].Timestamp
		})
		out = append(out, models.UserStory{User: user, Stories: alive})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newest(out[i]) > newest(out[j])
	})
	return out
}

func newest(item models.UserStory) int64 {
	if len(item.Stories) == 0 {
		return 0
	}
	return item.Stories[len(item.Stories)-1].Timestamp
}
