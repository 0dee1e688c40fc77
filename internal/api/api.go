// Package api exposes the optional HTTP upload endpoint. Accepted photos
// are staged as upload tasks; the uploader converts them into posts
// asynchronously.
package api

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"

	"channel-helper-bot/internal/database"
	"channel-helper-bot/internal/database/models"
	"channel-helper-bot/internal/imagehash"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
)

// maxUploadDimension bounds the re-encoded payload sent to the relay chat;
// Telegram rejects photos with larger sides.
const maxUploadDimension = 2000

// Server handles external media submissions over HTTP.
type Server struct {
	store  database.UploadTaskStore
	client *resty.Client
}

// NewServer creates a Server from its dependencies.
func NewServer(store database.UploadTaskStore) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("upload task store cannot be nil")
	}
	return &Server{
		store:  store,
		client: resty.New(),
	}, nil
}

// Router builds the gin engine serving the upload API.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/post_photo", s.postPhoto)
	return router
}

// Run serves the API on addr until the listener fails. A bind failure is
// returned to the caller and must be treated as fatal.
func (s *Server) Run(addr string) error {
	log.Printf("[API] Listening on %s", addr)
	return s.Router().Run(addr)
}

// postMediaRequest carries either base64-encoded bytes or a source URL.
type postMediaRequest struct {
	Base64 string `json:"base64"`
	URL    string `json:"url"`
}

type postMediaSuccess struct {
	Success bool `json:"success"`
}

// postMediaError distinguishes duplicate submissions from all other
// failures so callers can special-case them.
type postMediaError struct {
	Success   bool   `json:"success"`
	Duplicate bool   `json:"duplicate"`
	Reason    string `json:"reason"`
}

func errorResponse(c *gin.Context, duplicate bool, format string, args ...any) {
	reason := fmt.Sprintf(format, args...)
	log.Printf("[API] %s", reason)
	c.JSON(http.StatusBadRequest, postMediaError{
		Success:   false,
		Duplicate: duplicate,
		Reason:    reason,
	})
}

func (s *Server) postPhoto(c *gin.Context) {
	var req postMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, false, "Request decode error: %v", err)
		return
	}

	var photo []byte
	switch {
	case req.Base64 != "":
		decoded, err := base64.StdEncoding.DecodeString(req.Base64)
		if err != nil {
			errorResponse(c, false, "Base64 decode error: %v", err)
			return
		}
		photo = decoded
	case req.URL != "":
		resp, err := s.client.R().SetContext(c.Request.Context()).Get(req.URL)
		if err != nil {
			errorResponse(c, false, "Image download error: %v", err)
			return
		}
		if resp.IsError() {
			errorResponse(c, false, "Image download error: unexpected status %s", resp.Status())
			return
		}
		photo = resp.Body()
	default:
		errorResponse(c, false, "Either base64 or url is required")
		return
	}

	hash, err := imagehash.Hash(photo)
	if err != nil {
		errorResponse(c, false, "Image hashing error: %v", err)
		return
	}

	exists, err := s.store.PostWithHashExists(c.Request.Context(), hash)
	if err != nil {
		errorResponse(c, false, "Database error: %v", err)
		return
	}
	if exists {
		errorResponse(c, true, "Hash %s already exists", hash)
		return
	}

	// Bound the payload and normalize the encoding before staging; the
	// bytes go to Telegram as-is later.
	img, err := imaging.Decode(bytes.NewReader(photo))
	if err != nil {
		errorResponse(c, false, "Image decode error: %v", err)
		return
	}
	img = imaging.Fit(img, maxUploadDimension, maxUploadDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		errorResponse(c, false, "Image encode error: %v", err)
		return
	}

	if _, err := s.store.CreateUploadTask(c.Request.Context(), models.MediaTypePhoto, buf.Bytes(), hash); err != nil {
		errorResponse(c, false, "Database error: %v", err)
		return
	}

	c.JSON(http.StatusOK, postMediaSuccess{Success: true})
}
