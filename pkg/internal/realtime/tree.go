package realtime

import (
	"context"
	"errors"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidPath      = errors.New("invalid path")
)

// Tree is the keyed realtime store the client consumes. Values are plain
// JSON shapes: maps, strings, numbers and booleans. Writing nil removes.
type Tree interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	Set(ctx context.Context, path string, value any) error
	// Update writes several locations atomically, keyed by absolute path.
	Update(ctx context.Context, values map[string]any) error
	Remove(ctx context.Context, path string) error
	// Push allocates a new time-ordered child key under path.
	Push(path string) (string, error)
	// Watch fires the full snapshot of path after every change beneath it.
	Watch(path string, query Query, listener Listener) Registration
	// OnDisconnectRemove registers a removal the backend performs when
	// this client goes away, even if the process dies.
	OnDisconnectRemove(path string) error
}

type Listener interface {
	OnSnapshot(snapshot Snapshot)
	OnError(err error)
}

// ListenerFuncs adapts plain functions to a Listener.
type ListenerFuncs struct {
	Snapshot func(Snapshot)
	Error    func(error)
}

func (v ListenerFuncs) OnSnapshot(snapshot Snapshot) {
	if v.Snapshot != nil {
		v.Snapshot(snapshot)
	}
}

func (v ListenerFuncs) OnError(err error) {
	if v.Error != nil {
		v.Error(err)
	}
}

type Registration interface {
	Remove()
}

// Query orders the children of a watched path.
type Query struct {
	// OrderBy names the child field to sort on, children sort by key when empty.
	OrderBy string
}

type Snapshot struct {
	Key      string
	Path     string
	Exists   bool
	Value    any
	Children []Snapshot
}

// Decode fits the snapshot value into out.
func (v Snapshot) Decode(out any) error {
	raw, err := v.Raw()
	if err != nil {
		return err
	}
	return jsoniter.Unmarshal(raw, out)
}

func (v Snapshot) Raw() ([]byte, error) {
	return jsoniter.Marshal(v.Value)
}

func (v Snapshot) Child(key string) Snapshot {
	for _, child := range v.Children {
		if child.Key == key {
			return child
		}
	}
	return Snapshot{Key: key, Path: v.Path + "/" + key}
}

func (v Snapshot) String() string {
	if str, ok := v.Value.(string); ok {
		return str
	}
	return ""
}

// SplitPath returns the segments of an absolute or relative path.
func SplitPath(path string) []string {
	var out []string
	for _, segment := range strings.Split(path, "/") {
		if len(segment) > 0 {
			out = append(out, segment)
		}
	}
	return out
}

func CleanPath(path string) string {
	return "/" + strings.Join(SplitPath(path), "/")
}

// related reports whether a write at one path can change what is seen at the other.
func related(a, b []string) bool {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
