package realtime

import (
	"context"
	"fmt"
	"strings"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// PersistentTree keeps the tree in memory for reads and listeners, and
// writes every change through to the database before it becomes visible.
type PersistentTree struct {
	*MemoryTree

	db *gorm.DB
}

func NewPersistentTree(db *gorm.DB, opts ...MemoryOption) (*PersistentTree, error) {
	tree := &PersistentTree{db: db}
	tree.MemoryTree = NewMemoryTree(append(opts, WithCommitter(tree))...)

	var nodes []models.TreeNode
	if err := db.Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("unable to load tree nodes: %v", err)
	}

	leaves := make(map[string]any, len(nodes))
	for _, node := range nodes {
		var value any
		if err := jsoniter.Unmarshal(node.Value, &value); err != nil {
			log.Warn().Err(err).Str("path", node.Path).Msg("Skipped a malformed tree node...")
			continue
		}
		leaves[node.Path] = value
	}
	tree.MemoryTree.Load(Unflatten(leaves))

	log.Info().Int("nodes", len(nodes)).Msg("Restored realtime tree from database.")
	return tree, nil
}

func (v *PersistentTree) Commit(ctx context.Context, changes []Change) error {
	return v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, change := range changes {
			segments := SplitPath(change.Path)

			// A scalar stored at an ancestor is replaced by the new subtree.
			ancestors := lo.Times(len(segments)-1, func(i int) string {
				return "/" + strings.Join(segments[:i+1], "/")
			})
			if len(ancestors) > 0 {
				if err := tx.Where("path IN ?", ancestors).Delete(&models.TreeNode{}).Error; err != nil {
					return err
				}
			}
			if err := tx.
				Where("path = ? OR path LIKE ?", change.Path, escapeLike(change.Path)+"/%").
				Delete(&models.TreeNode{}).Error; err != nil {
				return err
			}

			if change.Value == nil {
				continue
			}
			var nodes []models.TreeNode
			for path, leaf := range Flatten(change.Path, change.Value) {
				raw, err := jsoniter.Marshal(leaf)
				if err != nil {
					return err
				}
				nodes = append(nodes, models.TreeNode{Path: path, Value: raw})
			}
			if len(nodes) > 0 {
				if err := tx.CreateInBatches(nodes, 100).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Flatten lists the scalar leaves of value keyed by absolute path.
func Flatten(path string, value any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, node any)
	walk = func(prefix string, node any) {
		if m, ok := node.(map[string]any); ok {
			for k, child := range m {
				walk(prefix+"/"+k, child)
			}
			return
		}
		if node != nil {
			out[prefix] = node
		}
	}
	walk(strings.TrimSuffix(CleanPath(path), "/"), value)
	return out
}

// Unflatten rebuilds the nested tree from path keyed leaves.
func Unflatten(leaves map[string]any) map[string]any {
	root := make(map[string]any)
	for path, leaf := range leaves {
		setAt(root, SplitPath(path), leaf)
	}
	return root
}

func escapeLike(in string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(in)
}
