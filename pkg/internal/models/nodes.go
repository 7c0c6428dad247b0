package models

import (
	"time"

	"gorm.io/datatypes"
)

// TreeNode is one persisted leaf of the realtime tree, addressed by its full path.
type TreeNode struct {
	Path      string         `json:"path" gorm:"primaryKey"`
	Value     datatypes.JSON `json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}
