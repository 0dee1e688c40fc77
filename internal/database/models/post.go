package models

import "time"

// Post is a durable record of an accepted media item, awaiting or having
// completed publication to the target channel.
type Post struct {
	ID        string
	MediaType MediaType
	FileID    string // Telegram file identifier of the media content
	IsSent    bool
	CreatedAt time.Time
	SentAt    *time.Time
	// ImageHash is the perceptual hash of the image content. Populated only
	// for photos; empty for video and animation posts.
	ImageHash string
	// Deleted marks the post as soft-deleted. Deleted posts are excluded from
	// dedup lookups, unsent selection and counts, but the row is kept.
	Deleted bool

	// MessageIDs lists every message location this post was referenced from:
	// the originating message plus any duplicate-notice replies.
	MessageIDs []PostMessageID
}

// IsPhoto reports whether the post carries photo media.
func (p *Post) IsPhoto() bool {
	return p.MediaType == MediaTypePhoto
}

// PostMessageID associates a post with one (chat, message) location.
// The pair is unique across the whole store and is never mutated.
type PostMessageID struct {
	ChatID    int64
	MessageID int
	PostID    string
}
