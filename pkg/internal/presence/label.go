package presence

import (
	"fmt"
	"sort"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/samber/lo"
)

// Typing returns the display names of everyone typing except selfId,
// ordered by user id.
func Typing(typing map[string]string, selfId string) []string {
	ids := lo.Filter(lo.Keys(typing), func(item string, _ int) bool {
		return item != selfId && len(typing[item]) > 0
	})
	sort.Strings(ids)
	return lo.Map(ids, func(item string, _ int) string {
		return typing[item]
	})
}

// Label renders the typing indicator. Only the first two names are shown.
func Label(typing map[string]string, selfId string, personal bool) string {
	names := Typing(typing, selfId)
	switch {
	case len(names) == 0:
		return ""
	case personal:
		return "typing…"
	case len(names) == 1:
		return fmt.Sprintf("%s is typing…", names[0])
	default:
		return fmt.Sprintf("%s & %s are typing…", names[0], names[1])
	}
}

// Decode reads a typing snapshot. Values that are not names are ignored.
func Decode(snapshot realtime.Snapshot, selfId string) map[string]string {
	out := make(map[string]string)
	for _, child := range snapshot.Children {
		if child.Key == selfId {
			continue
		}
		if name := child.String(); len(name) > 0 {
			out[child.Key] = name
		}
	}
	return out
}
