package models

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
)

// SeenMark is a single seen-by entry. Current clients write the viewer's
// display name, older ones wrote a bare true.
type SeenMark struct {
	Name   string
	Legacy bool
}

func NamedMark(name string) SeenMark {
	return SeenMark{Name: name}
}

func (v SeenMark) MarshalJSON() ([]byte, error) {
	if v.Legacy {
		return []byte("true"), nil
	}
	return jsoniter.Marshal(v.Name)
}

func (v *SeenMark) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*v = SeenMark{Legacy: true}
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("null")):
		*v = SeenMark{}
	case len(data) > 0 && data[0] == '"':
		var name string
		if err := jsoniter.Unmarshal(data, &name); err != nil {
			return err
		}
		*v = SeenMark{Name: name}
	default:
		return fmt.Errorf("unexpected seen mark: %s", data)
	}
	return nil
}

// SeenBy maps a user id to its seen mark. Entries are only ever added.
type SeenBy map[string]SeenMark

// Has reports whether the user has an entry, whatever the mark holds.
func (v SeenBy) Has(userId string) bool {
	_, ok := v[userId]
	return ok
}

// Viewers returns every user id present, except the excluded ones.
func (v SeenBy) Viewers(exclude ...string) []string {
	return lo.Filter(lo.Keys(v), func(item string, _ int) bool {
		return !lo.Contains(exclude, item)
	})
}
