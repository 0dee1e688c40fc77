package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"channel-helper-bot/internal/database"
	"channel-helper-bot/internal/database/models"
	"channel-helper-bot/internal/imagehash"
	"channel-helper-bot/internal/locales"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// forceMarker in a photo caption skips the dedup check and stores the photo
// unconditionally.
const forceMarker = "force"

// HandlePhoto ingests an incoming single photo message: it hashes the image
// content, checks for an existing post with the same hash, and either links
// the new message location to the existing post (sending a duplicate notice)
// or creates a new post.
//
// Hashing failures and duplicate-notice delivery failures propagate to the
// caller; store failures are logged and swallowed.
func (h *MessageHandler) HandlePhoto(ctx context.Context, message telego.Message) error {
	logPrefix := fmt.Sprintf("[Photo Chat:%d Msg:%d]", message.Chat.ID, message.MessageID)

	photo := largestPhotoSize(message.Photo)

	file, err := h.bot.GetFile(ctx, &telego.GetFileParams{FileID: photo.FileID})
	if err != nil {
		log.Printf("%s Error fetching file info: %v", logPrefix, err)
		return fmt.Errorf("fetch file info: %w", err)
	}

	data, err := h.downloadFile(ctx, file.FilePath)
	if err != nil {
		log.Printf("%s Error downloading photo: %v", logPrefix, err)
		return fmt.Errorf("download photo: %w", err)
	}

	hash, err := imagehash.Hash(data)
	if err != nil {
		log.Printf("%s Error hashing photo: %v", logPrefix, err)
		return fmt.Errorf("hash photo: %w", err)
	}

	if !strings.Contains(message.Caption, forceMarker) {
		existing, err := h.store.GetPostByHash(ctx, hash)
		if err != nil {
			log.Printf("%s Error checking hash presence: %v", logPrefix, err)
			return fmt.Errorf("check hash presence: %w", err)
		}
		if existing != nil {
			return h.handleDuplicatePhoto(ctx, message, existing, logPrefix)
		}
	}

	post, err := h.store.CreatePost(ctx, database.CreatePostParams{
		MediaType: models.MediaTypePhoto,
		FileID:    photo.FileID,
		ImageHash: hash,
		ChatID:    message.Chat.ID,
		MessageID: message.MessageID,
	})
	if err != nil {
		log.Printf("%s Error saving post: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s save post: %w", logPrefix, err))
		return nil
	}
	log.Printf("%s Post %s saved", logPrefix, post.ID)

	// Acknowledge with a reaction; failures here are not worth a retry.
	err = h.bot.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
		ChatID:    tu.ID(message.Chat.ID),
		MessageID: message.MessageID,
		Reaction: []telego.ReactionType{
			&telego.ReactionTypeEmoji{Type: telego.ReactionEmoji, Emoji: "👍"},
		},
	})
	if err != nil {
		log.Printf("%s Failed to set reaction: %v", logPrefix, err)
	}
	return nil
}

// handleDuplicatePhoto links the duplicate's message location to the
// existing post and republishes the stored file as a duplicate notice. The
// notice's own message location is tracked too, so a later delete-by-reply
// on the notice resolves the same post.
func (h *MessageHandler) handleDuplicatePhoto(ctx context.Context, message telego.Message, post *models.Post, logPrefix string) error {
	log.Printf("%s Hash %s already exists (post %s)", logPrefix, post.ImageHash, post.ID)

	if err := h.store.AddMessageIDForPost(ctx, post.ID, message.Chat.ID, message.MessageID); err != nil {
		log.Printf("%s Error saving post message id: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s save post message id: %w", logPrefix, err))
	}

	localizer := locales.NewLocalizer()
	caption := locales.GetMessage(localizer, "MsgDuplicateNotice", map[string]interface{}{
		"CreatedAt": post.CreatedAt.UTC().Format(time.RFC3339),
	})

	notice, err := h.bot.SendPhoto(ctx, &telego.SendPhotoParams{
		ChatID:          tu.ID(message.Chat.ID),
		Photo:           tu.FileFromID(post.FileID),
		Caption:         caption,
		ReplyParameters: replyTo(message),
	})
	if err != nil {
		log.Printf("%s Error sending duplicate notice: %v", logPrefix, err)
		return fmt.Errorf("send duplicate notice: %w", err)
	}
	log.Printf("%s Sent duplicate notice", logPrefix)

	if err := h.store.AddMessageIDForPost(ctx, post.ID, notice.Chat.ID, notice.MessageID); err != nil {
		log.Printf("%s Error saving notice message id: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s save notice message id: %w", logPrefix, err))
	}
	return nil
}

// HandleVideo ingests an incoming single video message. Videos are not
// hashed and skip dedup entirely.
func (h *MessageHandler) HandleVideo(ctx context.Context, message telego.Message) error {
	return h.createMediaPost(ctx, message, models.MediaTypeVideo, message.Video.FileID)
}

// HandleAnimation ingests an incoming animation message. Animations are not
// hashed and skip dedup entirely.
func (h *MessageHandler) HandleAnimation(ctx context.Context, message telego.Message) error {
	return h.createMediaPost(ctx, message, models.MediaTypeAnimation, message.Animation.FileID)
}

func (h *MessageHandler) createMediaPost(ctx context.Context, message telego.Message, mediaType models.MediaType, fileID string) error {
	logPrefix := fmt.Sprintf("[%s Chat:%d Msg:%d]", mediaType, message.Chat.ID, message.MessageID)

	post, err := h.store.CreatePost(ctx, database.CreatePostParams{
		MediaType: mediaType,
		FileID:    fileID,
		ChatID:    message.Chat.ID,
		MessageID: message.MessageID,
	})
	if err != nil {
		log.Printf("%s Error saving post: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s save post: %w", logPrefix, err))
		return nil
	}
	log.Printf("%s Post %s saved", logPrefix, post.ID)
	return nil
}

// HandleUnknown replies to message types the bot does not ingest.
func (h *MessageHandler) HandleUnknown(ctx context.Context, message telego.Message) error {
	localizer := locales.NewLocalizer()
	msg := locales.GetMessage(localizer, "MsgUnknownMessageType", nil)
	_, err := h.bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), msg).WithReplyParameters(replyTo(message)))
	return err
}
