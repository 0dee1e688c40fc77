package handlers

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	"github.com/pkg/errors"
)

// largestPhotoSize returns the highest-resolution variant of a photo.
func largestPhotoSize(sizes []telego.PhotoSize) telego.PhotoSize {
	photo := sizes[0]
	for _, p := range sizes {
		if p.FileSize > photo.FileSize {
			photo = p
		}
	}
	return photo
}

// downloadFile fetches the raw bytes of a Telegram file by its file path.
func (h *MessageHandler) downloadFile(ctx context.Context, filePath string) ([]byte, error) {
	url := fmt.Sprintf("%s/file/bot%s/%s", h.fileAPIURL, h.token, filePath)
	resp, err := h.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, errors.Wrap(err, "download file")
	}
	if resp.IsError() {
		return nil, errors.Errorf("download file: unexpected status %s", resp.Status())
	}
	return resp.Body(), nil
}

// replyTo builds reply parameters targeting the given message.
func replyTo(message telego.Message) *telego.ReplyParameters {
	return &telego.ReplyParameters{MessageID: message.MessageID}
}
