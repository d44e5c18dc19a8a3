package catalogmodule

import "time"

// Asset is a media file known to the catalog. The id is derived from the
// absolute path, so re-importing a file keeps its id.
type Asset struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Path        string    `gorm:"uniqueIndex;not null" json:"path"`
	MediaType   string    `gorm:"type:varchar(16);not null;index" json:"media_type"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	ContentHash string    `gorm:"type:varchar(64)" json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ImportResult summarises a directory import
type ImportResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
