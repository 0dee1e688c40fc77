package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"channel-helper-bot/internal/database"
	"channel-helper-bot/internal/database/models"
	"channel-helper-bot/internal/imagehash"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "test.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testImagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{A: 255}
			if x >= 32 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func postPhotoRequest(t *testing.T, server *Server, body any) (*httptest.ResponseRecorder, postMediaError) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/post_photo", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	var resp postMediaError
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return recorder, resp
}

func TestPostPhotoBase64StagesTask(t *testing.T) {
	store := newTestStore(t)
	server, err := NewServer(store)
	require.NoError(t, err)

	data := testImagePNG(t)
	recorder, resp := postPhotoRequest(t, server, postMediaRequest{
		Base64: base64.StdEncoding.EncodeToString(data),
	})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, resp.Success)

	task, err := store.FetchUnprocessedUploadTask(context.Background())
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, models.MediaTypePhoto, task.MediaType)
	assert.NotEmpty(t, task.Data)
	assert.NotEmpty(t, task.ImageHash)

	// The staged payload survives re-encoding as far as the hash cares.
	stagedHash, err := imagehash.Hash(task.Data)
	require.NoError(t, err)
	assert.Equal(t, task.ImageHash, stagedHash)
}

func TestPostPhotoURLStagesTask(t *testing.T) {
	store := newTestStore(t)
	server, err := NewServer(store)
	require.NoError(t, err)

	data := testImagePNG(t)
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	t.Cleanup(imageServer.Close)

	recorder, resp := postPhotoRequest(t, server, postMediaRequest{URL: imageServer.URL})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, resp.Success)

	task, err := store.FetchUnprocessedUploadTask(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, task)
}

func TestPostPhotoRejectsDuplicate(t *testing.T) {
	store := newTestStore(t)
	server, err := NewServer(store)
	require.NoError(t, err)

	data := testImagePNG(t)
	hash, err := imagehash.Hash(data)
	require.NoError(t, err)
	_, err = store.CreatePost(context.Background(), database.CreatePostParams{
		MediaType: models.MediaTypePhoto,
		FileID:    "existing",
		ImageHash: hash,
		ChatID:    10,
		MessageID: 1,
	})
	require.NoError(t, err)

	recorder, resp := postPhotoRequest(t, server, postMediaRequest{
		Base64: base64.StdEncoding.EncodeToString(data),
	})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.False(t, resp.Success)
	assert.True(t, resp.Duplicate)

	task, err := store.FetchUnprocessedUploadTask(context.Background())
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestPostPhotoRejectsNonImagePayload(t *testing.T) {
	store := newTestStore(t)
	server, err := NewServer(store)
	require.NoError(t, err)

	// "aGVsbG8=" decodes fine but is not an image.
	recorder, resp := postPhotoRequest(t, server, postMediaRequest{Base64: "aGVsbG8="})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.False(t, resp.Success)
	assert.False(t, resp.Duplicate)
	assert.Contains(t, resp.Reason, "hashing")

	task, err := store.FetchUnprocessedUploadTask(context.Background())
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestPostPhotoRejectsInvalidBase64(t *testing.T) {
	store := newTestStore(t)
	server, err := NewServer(store)
	require.NoError(t, err)

	recorder, resp := postPhotoRequest(t, server, postMediaRequest{Base64: "%%%not-base64%%%"})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.False(t, resp.Success)
}

func TestPostPhotoRequiresSource(t *testing.T) {
	store := newTestStore(t)
	server, err := NewServer(store)
	require.NoError(t, err)

	recorder, resp := postPhotoRequest(t, server, postMediaRequest{})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Reason, "required")
}
