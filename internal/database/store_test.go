package database

import (
	"context"
	"path/filepath"
	"testing"

	"channel-helper-bot/internal/database/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createPhotoPost(t *testing.T, store *Store, hash string, chatID int64, messageID int) *models.Post {
	t.Helper()
	post, err := store.CreatePost(context.Background(), CreatePostParams{
		MediaType: models.MediaTypePhoto,
		FileID:    "file-" + hash,
		ImageHash: hash,
		ChatID:    chatID,
		MessageID: messageID,
	})
	require.NoError(t, err)
	return post
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite3")

	store, err := Open(path)
	require.NoError(t, err)
	_ = createPhotoPost(t, store, "hash-survives", 1, 1)
	require.NoError(t, store.Close())

	// Reopening applies no migrations twice and keeps existing data.
	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	exists, err := store.PostWithHashExists(context.Background(), "hash-survives")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreatePostAssignsIDAndTracksOrigin(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	post := createPhotoPost(t, store, "h1", 100, 7)
	assert.NotEmpty(t, post.ID)
	require.Len(t, post.MessageIDs, 1)
	assert.Equal(t, int64(100), post.MessageIDs[0].ChatID)
	assert.Equal(t, 7, post.MessageIDs[0].MessageID)

	found, err := store.FetchPostByMessageID(ctx, 100, 7)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, post.ID, found.ID)
}

func TestCreatePostHonorsProvidedID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	post, err := store.CreatePost(ctx, CreatePostParams{
		ID:        "fixed-id",
		MediaType: models.MediaTypePhoto,
		FileID:    "f",
		ImageHash: "h-fixed",
		ChatID:    1,
		MessageID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", post.ID)
}

func TestAddMessageIDForPostRejectsDuplicatePair(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	post := createPhotoPost(t, store, "h1", 100, 7)

	require.NoError(t, store.AddMessageIDForPost(ctx, post.ID, 100, 8))
	// The (chat, message) pair is unique across the whole store.
	assert.Error(t, store.AddMessageIDForPost(ctx, post.ID, 100, 7))
}

func TestGetPostByHashReturnsAllAssociations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	post := createPhotoPost(t, store, "h1", 100, 7)
	require.NoError(t, store.AddMessageIDForPost(ctx, post.ID, 100, 8))
	require.NoError(t, store.AddMessageIDForPost(ctx, post.ID, 200, 9))

	found, err := store.GetPostByHash(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, post.ID, found.ID)
	assert.Len(t, found.MessageIDs, 3)

	missing, err := store.GetPostByHash(ctx, "no-such-hash")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPostWithHashExistsMatchesNonDeletedOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exists, err := store.PostWithHashExists(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, exists)

	post := createPhotoPost(t, store, "h1", 100, 7)

	exists, err = store.PostWithHashExists(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.DeletePost(ctx, post.ID))

	exists, err = store.PostWithHashExists(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSoftDeleteExcludesPostButKeepsRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	post := createPhotoPost(t, store, "h1", 100, 7)
	require.NoError(t, store.DeletePost(ctx, post.ID))
	// Idempotent.
	require.NoError(t, store.DeletePost(ctx, post.ID))

	byHash, err := store.GetPostByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Nil(t, byHash)

	unsent, err := store.FetchUnsentPost(ctx)
	require.NoError(t, err)
	assert.Nil(t, unsent)

	count, err := store.UnsentPostsCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	byMessage, err := store.FetchPostByMessageID(ctx, 100, 7)
	require.NoError(t, err)
	assert.Nil(t, byMessage)

	// The row itself is retained.
	var kept int
	require.NoError(t, store.db.QueryRow(
		"SELECT COUNT(*) FROM posts WHERE id = ?", post.ID).Scan(&kept))
	assert.Equal(t, 1, kept)
}

func TestMarkSentPostsIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := createPhotoPost(t, store, "ha", 1, 1)
	b := createPhotoPost(t, store, "hb", 1, 2)

	require.NoError(t, store.MarkSentPosts(ctx, []string{a.ID, b.ID}))

	count, err := store.UnsentPostsCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	var firstSentAt int64
	require.NoError(t, store.db.QueryRow(
		"SELECT sent_at FROM posts WHERE id = ?", a.ID).Scan(&firstSentAt))

	require.NoError(t, store.MarkSentPosts(ctx, []string{a.ID, b.ID}))

	var secondSentAt int64
	require.NoError(t, store.db.QueryRow(
		"SELECT sent_at FROM posts WHERE id = ?", a.ID).Scan(&secondSentAt))
	assert.Equal(t, firstSentAt, secondSentAt)

	require.NoError(t, store.MarkSentPosts(ctx, nil))
}

func TestFetchUnsentPostSkipsSent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := createPhotoPost(t, store, "ha", 1, 1)
	require.NoError(t, store.MarkSentPosts(ctx, []string{a.ID}))

	post, err := store.FetchUnsentPost(ctx)
	require.NoError(t, err)
	assert.Nil(t, post)

	b := createPhotoPost(t, store, "hb", 1, 2)
	post, err = store.FetchUnsentPost(ctx)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, b.ID, post.ID)
}

func TestFetchTenUnsentPhotoPostsFiltersAndLimits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		createPhotoPost(t, store, "", 1, i+1)
	}
	_, err := store.CreatePost(ctx, CreatePostParams{
		MediaType: models.MediaTypeVideo,
		FileID:    "v",
		ChatID:    1,
		MessageID: 100,
	})
	require.NoError(t, err)

	posts, err := store.FetchTenUnsentPhotoPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, 10)
	for _, post := range posts {
		assert.Equal(t, models.MediaTypePhoto, post.MediaType)
		assert.False(t, post.IsSent)
	}
}

func TestCreateUploadTaskCoalescesWakes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.CreateUploadTask(ctx, models.MediaTypePhoto, []byte("payload"), "")
		require.NoError(t, err)
	}

	// Three rings while nobody listened coalesce into one pending wake.
	assert.Len(t, store.TaskAdded(), 1)
	<-store.TaskAdded()
	assert.Empty(t, store.TaskAdded())

	// All three tasks are still retrievable by draining to exhaustion.
	for i := 0; i < 3; i++ {
		task, err := store.FetchUnprocessedUploadTask(ctx)
		require.NoError(t, err)
		require.NotNil(t, task)
		require.NoError(t, store.MarkCompleteUploadTask(ctx, task.ID))
	}
	task, err := store.FetchUnprocessedUploadTask(ctx)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestMarkCompleteUploadTaskClearsPayload(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateUploadTask(ctx, models.MediaTypePhoto, []byte("payload"), "h1")
	require.NoError(t, err)

	require.NoError(t, store.MarkCompleteUploadTask(ctx, created.ID))
	// Idempotent.
	require.NoError(t, store.MarkCompleteUploadTask(ctx, created.ID))

	var (
		processed bool
		data      []byte
	)
	require.NoError(t, store.db.QueryRow(
		"SELECT is_processed, data FROM upload_tasks WHERE id = ?", created.ID).
		Scan(&processed, &data))
	assert.True(t, processed)
	assert.Empty(t, data)
}
