package models

import "time"

// UploadTask is a staging record for externally submitted media bytes
// pending conversion into a Post. Tasks are terminal once processed: the
// row is kept with the payload cleared to reclaim space.
type UploadTask struct {
	ID          string
	MediaType   MediaType
	Data        []byte
	IsProcessed bool
	CreatedAt   time.Time
	ProcessedAt *time.Time
	ImageHash   string
}
