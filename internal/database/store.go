package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"channel-helper-bot/internal/database/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CreatePostParams collects the inputs for CreatePost. ID is optional; a
// fresh UUIDv7 is assigned when it is empty. ImageHash is optional and only
// meaningful for photos.
type CreatePostParams struct {
	ID        string
	MediaType models.MediaType
	FileID    string
	ImageHash string
	ChatID    int64
	MessageID int
}

// CreatePost inserts a post together with its first message-id association
// in one transaction.
func (s *Store) CreatePost(ctx context.Context, p CreatePostParams) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := p.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO posts (id, media_type, file_id, is_sent, created_at, sent_at, image_hash, deleted)
		 VALUES (?, ?, ?, 0, ?, NULL, ?, 0)`,
		id, p.MediaType.String(), p.FileID, now.Unix(), nullString(p.ImageHash))
	if err != nil {
		return nil, errors.Wrap(err, "insert post")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO post_message_ids (chat_id, message_id, post_id) VALUES (?, ?, ?)`,
		p.ChatID, p.MessageID, id)
	if err != nil {
		return nil, errors.Wrap(err, "insert post message id")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit transaction")
	}

	return &models.Post{
		ID:        id,
		MediaType: p.MediaType,
		FileID:    p.FileID,
		CreatedAt: now,
		ImageHash: p.ImageHash,
		MessageIDs: []models.PostMessageID{
			{ChatID: p.ChatID, MessageID: p.MessageID, PostID: id},
		},
	}, nil
}

// AddMessageIDForPost appends a message-id association to an existing post.
// It fails if the (chat, message) pair is already recorded for any post.
func (s *Store) AddMessageIDForPost(ctx context.Context, postID string, chatID int64, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO post_message_ids (chat_id, message_id, post_id) VALUES (?, ?, ?)`,
		chatID, messageID, postID)
	return errors.Wrap(err, "insert post message id")
}

// GetPostByHash returns a non-deleted post with exactly the given hash,
// including all its message-id associations, or nil when there is none.
func (s *Store) GetPostByHash(ctx context.Context, hash string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, media_type, file_id, is_sent, created_at, sent_at, image_hash, deleted
		 FROM posts WHERE image_hash = ? AND deleted = 0 LIMIT 1`, hash)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, message_id, post_id FROM post_message_ids WHERE post_id = ?`, post.ID)
	if err != nil {
		return nil, errors.Wrap(err, "query post message ids")
	}
	defer rows.Close()
	for rows.Next() {
		var m models.PostMessageID
		if err := rows.Scan(&m.ChatID, &m.MessageID, &m.PostID); err != nil {
			return nil, errors.Wrap(err, "scan post message id")
		}
		post.MessageIDs = append(post.MessageIDs, m)
	}
	return post, errors.Wrap(rows.Err(), "iterate post message ids")
}

// PostWithHashExists reports whether a non-deleted post with exactly the
// given hash exists, without materializing the row.
func (s *Store) PostWithHashExists(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE image_hash = ? AND deleted = 0)`, hash).Scan(&exists)
	return exists, errors.Wrap(err, "query hash existence")
}

// UnsentPostsCount returns the number of posts still awaiting publication.
func (s *Store) UnsentPostsCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE is_sent = 0 AND deleted = 0`).Scan(&count)
	return count, errors.Wrap(err, "count unsent posts")
}

// FetchUnsentPost returns one unsent, non-deleted post chosen uniformly at
// random among the eligible rows, or nil when there is none. Randomized
// selection avoids publish-order starvation bias.
func (s *Store) FetchUnsentPost(ctx context.Context) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, media_type, file_id, is_sent, created_at, sent_at, image_hash, deleted
		 FROM posts WHERE is_sent = 0 AND deleted = 0 ORDER BY RANDOM() LIMIT 1`)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return post, err
}

// FetchTenUnsentPhotoPosts returns up to ten unsent, non-deleted photo posts
// chosen at random without replacement.
func (s *Store) FetchTenUnsentPhotoPosts(ctx context.Context) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, media_type, file_id, is_sent, created_at, sent_at, image_hash, deleted
		 FROM posts WHERE is_sent = 0 AND deleted = 0 AND media_type = ?
		 ORDER BY RANDOM() LIMIT 10`, models.MediaTypePhoto.String())
	if err != nil {
		return nil, errors.Wrap(err, "query unsent photo posts")
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, errors.Wrap(rows.Err(), "iterate unsent photo posts")
}

// MarkSentPosts marks the given posts as sent and stamps sent_at. The
// operation is idempotent: already-sent posts keep their original timestamp.
func (s *Store) MarkSentPosts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().Unix())
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE posts SET is_sent = 1, sent_at = ? WHERE id IN (`+placeholders+`) AND is_sent = 0`,
		args...)
	return errors.Wrap(err, "mark posts sent")
}

// FetchPostByMessageID looks a post up by one of its message locations.
// Returns nil when no non-deleted post matches.
func (s *Store) FetchPostByMessageID(ctx context.Context, chatID int64, messageID int) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT p.id, p.media_type, p.file_id, p.is_sent, p.created_at, p.sent_at, p.image_hash, p.deleted
		 FROM posts p
		 JOIN post_message_ids m ON m.post_id = p.id
		 WHERE m.chat_id = ? AND m.message_id = ? AND p.deleted = 0`,
		chatID, messageID)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return post, err
}

// DeletePost soft-deletes a post. The row is retained but excluded from all
// dedup lookups, unsent selection and counts. Idempotent.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE posts SET deleted = 1 WHERE id = ?`, id)
	return errors.Wrap(err, "delete post")
}

// CreateUploadTask stages externally submitted media bytes and rings the
// upload-task doorbell exactly once.
func (s *Store) CreateUploadTask(ctx context.Context, mediaType models.MediaType, data []byte, hash string) (*models.UploadTask, error) {
	s.mu.Lock()
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO upload_tasks (id, media_type, data, is_processed, created_at, processed_at, image_hash)
		 VALUES (?, ?, ?, 0, ?, NULL, ?)`,
		id, mediaType.String(), data, now.Unix(), nullString(hash))
	s.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "insert upload task")
	}

	s.notifyTaskAdded()

	return &models.UploadTask{
		ID:        id,
		MediaType: mediaType,
		Data:      data,
		CreatedAt: now,
		ImageHash: hash,
	}, nil
}

// FetchUnprocessedUploadTask returns one unprocessed task in no particular
// order, or nil when the queue is empty.
func (s *Store) FetchUnprocessedUploadTask(ctx context.Context) (*models.UploadTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, media_type, data, is_processed, created_at, processed_at, image_hash
		 FROM upload_tasks WHERE is_processed = 0 LIMIT 1`)

	var (
		task        models.UploadTask
		mediaType   string
		createdAt   int64
		processedAt sql.NullInt64
		imageHash   sql.NullString
	)
	err := row.Scan(&task.ID, &mediaType, &task.Data, &task.IsProcessed, &createdAt, &processedAt, &imageHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan upload task")
	}
	task.MediaType, err = models.ParseMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	task.CreatedAt = time.Unix(createdAt, 0)
	if processedAt.Valid {
		t := time.Unix(processedAt.Int64, 0)
		task.ProcessedAt = &t
	}
	task.ImageHash = imageHash.String
	return &task, nil
}

// MarkCompleteUploadTask marks a task processed, stamps processed_at and
// clears the payload to reclaim space. Idempotent.
func (s *Store) MarkCompleteUploadTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE upload_tasks SET is_processed = 1, processed_at = ?, data = x''
		 WHERE id = ? AND is_processed = 0`,
		time.Now().Unix(), id)
	return errors.Wrap(err, "mark upload task complete")
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*models.Post, error) {
	var (
		post      models.Post
		mediaType string
		createdAt int64
		sentAt    sql.NullInt64
		imageHash sql.NullString
	)
	err := row.Scan(&post.ID, &mediaType, &post.FileID, &post.IsSent, &createdAt, &sentAt, &imageHash, &post.Deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, errors.Wrap(err, "scan post")
	}
	post.MediaType, err = models.ParseMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	post.CreatedAt = time.Unix(createdAt, 0)
	if sentAt.Valid {
		t := time.Unix(sentAt.Int64, 0)
		post.SentAt = &t
	}
	post.ImageHash = imageHash.String
	return &post, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
