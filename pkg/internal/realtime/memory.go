package realtime

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Change is one location written by a Set, Update or Remove.
// A nil value is a removal.
type Change struct {
	Path  string
	Value any
}

// Committer persists changes before they become visible. A failed commit
// aborts the whole write.
type Committer interface {
	Commit(ctx context.Context, changes []Change) error
}

type MemoryOption func(*MemoryTree)

func WithClock(now func() time.Time) MemoryOption {
	return func(v *MemoryTree) {
		v.keys = NewKeyGenerator(now)
	}
}

func WithCommitter(committer Committer) MemoryOption {
	return func(v *MemoryTree) {
		v.committer = committer
	}
}

// MemoryTree is an in-process Tree. Listeners receive full snapshots on
// their own goroutine, in write order, and only the latest pending one.
type MemoryTree struct {
	mu        sync.Mutex
	root      map[string]any
	keys      *KeyGenerator
	committer Committer
	watchers  map[uint64]*watch
	nextID    uint64
	denied    []string
	cleanups  []string
}

func NewMemoryTree(opts ...MemoryOption) *MemoryTree {
	tree := &MemoryTree{
		root:     make(map[string]any),
		keys:     NewKeyGenerator(nil),
		watchers: make(map[uint64]*watch),
	}
	for _, opt := range opts {
		opt(tree)
	}
	return tree
}

// Deny rejects reads and writes under the path prefix, the way security
// rules of the backend would.
func (v *MemoryTree) Deny(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.denied = append(v.denied, CleanPath(path))
}

func (v *MemoryTree) Allow(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	path = CleanPath(path)
	v.denied = lo.Without(v.denied, path)
}

func (v *MemoryTree) checkAccess(path string) error {
	for _, prefix := range v.denied {
		if path == prefix || strings.HasPrefix(path, prefix+"/") || prefix == "/" {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
	}
	return nil
}

func (v *MemoryTree) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	path = CleanPath(path)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkAccess(path); err != nil {
		return Snapshot{}, err
	}
	return v.snapshotOf(SplitPath(path), Query{}), nil
}

func (v *MemoryTree) Set(ctx context.Context, path string, value any) error {
	return v.Update(ctx, map[string]any{path: value})
}

func (v *MemoryTree) Remove(ctx context.Context, path string) error {
	return v.Update(ctx, map[string]any{path: nil})
}

func (v *MemoryTree) Update(ctx context.Context, values map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	changes := make([]Change, 0, len(values))
	for path, value := range values {
		normalized, err := normalize(value)
		if err != nil {
			return fmt.Errorf("unable to encode value at %s: %v", path, err)
		}
		changes = append(changes, Change{Path: CleanPath(path), Value: normalized})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	for i := range changes {
		for j := i + 1; j < len(changes); j++ {
			if related(SplitPath(changes[i].Path), SplitPath(changes[j].Path)) {
				return fmt.Errorf("%w: overlapping update of %s and %s", ErrInvalidPath, changes[i].Path, changes[j].Path)
			}
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for _, change := range changes {
		if change.Path == "/" {
			return fmt.Errorf("%w: cannot write the root", ErrInvalidPath)
		}
		if err := v.checkAccess(change.Path); err != nil {
			return err
		}
	}
	if v.committer != nil {
		if err := v.committer.Commit(ctx, changes); err != nil {
			return err
		}
	}

	v.apply(changes)
	return nil
}

// Load replaces the whole tree, used when restoring persisted state.
func (v *MemoryTree) Load(root map[string]any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	normalized, _ := normalize(root)
	if m, ok := normalized.(map[string]any); ok {
		v.root = m
	} else {
		v.root = make(map[string]any)
	}
	for _, w := range v.watchers {
		v.emit(w)
	}
}

// apply must be called with mu held.
func (v *MemoryTree) apply(changes []Change) {
	var touched [][]string
	for _, change := range changes {
		segments := SplitPath(change.Path)
		setAt(v.root, segments, change.Value)
		touched = append(touched, segments)
	}

	for _, w := range v.watchers {
		for _, segments := range touched {
			if related(w.segments, segments) {
				v.emit(w)
				break
			}
		}
	}
}

func (v *MemoryTree) emit(w *watch) {
	path := "/" + strings.Join(w.segments, "/")
	if err := v.checkAccess(path); err != nil {
		w.deliverError(err)
		return
	}
	w.deliverSnapshot(v.snapshotOf(w.segments, w.query))
}

func (v *MemoryTree) Push(path string) (string, error) {
	return v.keys.Next()
}

func (v *MemoryTree) Watch(path string, query Query, listener Listener) Registration {
	w := newWatch(SplitPath(path), query, listener)

	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.watchers[id] = w
	v.emit(w)
	v.mu.Unlock()

	go w.run()

	return &registration{tree: v, id: id}
}

func (v *MemoryTree) OnDisconnectRemove(path string) error {
	path = CleanPath(path)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkAccess(path); err != nil {
		return err
	}
	if !lo.Contains(v.cleanups, path) {
		v.cleanups = append(v.cleanups, path)
	}
	return nil
}

// Disconnect runs the registered disconnect cleanups, which is what the
// backend does when the client connection drops.
func (v *MemoryTree) Disconnect(ctx context.Context) error {
	v.mu.Lock()
	cleanups := v.cleanups
	v.cleanups = nil
	v.mu.Unlock()

	if len(cleanups) == 0 {
		return nil
	}
	values := make(map[string]any, len(cleanups))
	for _, path := range cleanups {
		values[path] = nil
	}
	log.Debug().Int("count", len(cleanups)).Msg("Running disconnect cleanups...")
	return v.Update(ctx, values)
}

// Watchers counts the registered listeners.
func (v *MemoryTree) Watchers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.watchers)
}

func (v *MemoryTree) snapshotOf(segments []string, query Query) Snapshot {
	var key string
	if len(segments) > 0 {
		key = segments[len(segments)-1]
	}
	node, exists := getAt(v.root, segments)
	return buildSnapshot("/"+strings.Join(segments, "/"), key, cloneValue(node), exists, query)
}

func buildSnapshot(path, key string, value any, exists bool, query Query) Snapshot {
	snapshot := Snapshot{Key: key, Path: path, Exists: exists, Value: value}
	if m, ok := value.(map[string]any); ok {
		snapshot.Children = make([]Snapshot, 0, len(m))
		for k, child := range m {
			snapshot.Children = append(snapshot.Children, buildSnapshot(strings.TrimSuffix(path, "/")+"/"+k, k, child, true, Query{}))
		}
		sortChildren(snapshot.Children, query)
	}
	return snapshot
}

type registration struct {
	tree *MemoryTree
	id   uint64
	once sync.Once
}

func (v *registration) Remove() {
	v.once.Do(func() {
		v.tree.mu.Lock()
		w, ok := v.tree.watchers[v.id]
		delete(v.tree.watchers, v.id)
		v.tree.mu.Unlock()
		if ok {
			w.stop()
		}
	})
}

type watch struct {
	segments []string
	query    Query
	listener Listener

	mu       sync.Mutex
	snapshot *Snapshot
	err      error
	signal   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newWatch(segments []string, query Query, listener Listener) *watch {
	return &watch{
		segments: segments,
		query:    query,
		listener: listener,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (v *watch) deliverSnapshot(snapshot Snapshot) {
	v.mu.Lock()
	v.snapshot = &snapshot
	v.mu.Unlock()
	v.wake()
}

func (v *watch) deliverError(err error) {
	v.mu.Lock()
	v.err = err
	v.mu.Unlock()
	v.wake()
}

func (v *watch) wake() {
	select {
	case v.signal <- struct{}{}:
	default:
	}
}

func (v *watch) stop() {
	v.stopOnce.Do(func() { close(v.done) })
}

func (v *watch) run() {
	for {
		select {
		case <-v.done:
			return
		case <-v.signal:
		}

		v.mu.Lock()
		snapshot, err := v.snapshot, v.err
		v.snapshot, v.err = nil, nil
		v.mu.Unlock()

		select {
		case <-v.done:
			return
		default:
		}

		if err != nil {
			v.listener.OnError(err)
		}
		if snapshot != nil {
			v.listener.OnSnapshot(*snapshot)
		}
	}
}

// normalize reduces any value to the plain JSON shapes the tree stores.
// Lists become maps keyed by index and empty maps vanish.
func normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := jsoniter.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := jsoniter.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return prune(out), nil
}

func prune(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			if pruned := prune(child); pruned == nil {
				delete(v, k)
			} else {
				v[k] = pruned
			}
		}
		if len(v) == 0 {
			return nil
		}
		return v
	case []any:
		m := make(map[string]any, len(v))
		for i, child := range v {
			m[strconv.Itoa(i)] = child
		}
		return prune(m)
	default:
		return v
	}
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = cloneValue(child)
		}
		return out
	default:
		return v
	}
}

func getAt(root map[string]any, segments []string) (any, bool) {
	var node any = root
	for _, segment := range segments {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[segment]; !ok {
			return nil, false
		}
	}
	if m, ok := node.(map[string]any); ok && len(m) == 0 {
		return nil, false
	}
	return node, true
}

func setAt(root map[string]any, segments []string, value any) {
	if len(segments) == 0 {
		return
	}
	head, rest := segments[0], segments[1:]
	if len(rest) == 0 {
		if value == nil {
			delete(root, head)
		} else {
			root[head] = value
		}
		return
	}

	child, ok := root[head].(map[string]any)
	if !ok {
		if value == nil {
			return
		}
		child = make(map[string]any)
		root[head] = child
	}
	setAt(child, rest, value)
	if len(child) == 0 {
		delete(root, head)
	}
}
