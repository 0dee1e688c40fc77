package database

import (
	"context"

	"channel-helper-bot/internal/database/models"
)

// PostStore is the persistence surface used by the ingestion handlers and
// the publish scheduler.
type PostStore interface {
	CreatePost(ctx context.Context, p CreatePostParams) (*models.Post, error)
	AddMessageIDForPost(ctx context.Context, postID string, chatID int64, messageID int) error
	GetPostByHash(ctx context.Context, hash string) (*models.Post, error)
	PostWithHashExists(ctx context.Context, hash string) (bool, error)
	UnsentPostsCount(ctx context.Context) (int, error)
	FetchUnsentPost(ctx context.Context) (*models.Post, error)
	FetchTenUnsentPhotoPosts(ctx context.Context) ([]models.Post, error)
	MarkSentPosts(ctx context.Context, ids []string) error
	FetchPostByMessageID(ctx context.Context, chatID int64, messageID int) (*models.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// UploadTaskStore is the persistence surface used by the upload API and the
// staging-queue drainer.
type UploadTaskStore interface {
	CreateUploadTask(ctx context.Context, mediaType models.MediaType, data []byte, hash string) (*models.UploadTask, error)
	FetchUnprocessedUploadTask(ctx context.Context) (*models.UploadTask, error)
	MarkCompleteUploadTask(ctx context.Context, id string) error
	PostWithHashExists(ctx context.Context, hash string) (bool, error)
	CreatePost(ctx context.Context, p CreatePostParams) (*models.Post, error)
	TaskAdded() <-chan struct{}
}
