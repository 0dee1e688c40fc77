package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"

	"channel-helper-bot/internal/locales"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// deleteCallbackPrefix keys the inline "Delete" button the uploader attaches
// to relay messages. The suffix is the post id the button deletes.
const deleteCallbackPrefix = "del "

// DeleteCallbackData builds the callback payload for a relay delete button.
func DeleteCallbackData(postID string) string {
	return deleteCallbackPrefix + postID
}

// IsDeleteCallback reports whether the callback payload is a relay delete
// action and returns the targeted post id.
func IsDeleteCallback(data string) (string, bool) {
	if !strings.HasPrefix(data, deleteCallbackPrefix) {
		return "", false
	}
	return strings.TrimPrefix(data, deleteCallbackPrefix), true
}

// HandleDelete processes the /del command. It must be sent as a reply to a
// previously tracked message; the referenced post is soft-deleted.
func (h *MessageHandler) HandleDelete(ctx context.Context, message telego.Message) error {
	logPrefix := fmt.Sprintf("[Del Chat:%d Msg:%d]", message.Chat.ID, message.MessageID)
	localizer := locales.NewLocalizer()

	if message.ReplyToMessage == nil {
		msg := locales.GetMessage(localizer, "MsgDeleteReplyRequired", nil)
		_, err := h.bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), msg).WithReplyParameters(replyTo(message)))
		return err
	}
	reply := *message.ReplyToMessage

	post, err := h.store.FetchPostByMessageID(ctx, reply.Chat.ID, reply.MessageID)
	if err != nil {
		log.Printf("%s Failed to fetch post: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s fetch post: %w", logPrefix, err))
		return nil
	}
	if post == nil {
		msg := locales.GetMessage(localizer, "MsgPostNotFound", nil)
		_, err := h.bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), msg).WithReplyParameters(replyTo(reply)))
		return err
	}

	if err := h.store.DeletePost(ctx, post.ID); err != nil {
		log.Printf("%s Failed to delete post %s: %v", logPrefix, post.ID, err)
		sentry.CaptureException(fmt.Errorf("%s delete post: %w", logPrefix, err))
		return nil
	}
	log.Printf("%s Post %s deleted", logPrefix, post.ID)

	msg := locales.GetMessage(localizer, "MsgPostDeleted", nil)
	_, err = h.bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), msg).WithReplyParameters(replyTo(reply)))
	return err
}

// HandleDeleteCallback processes a press of the inline "Delete" button on a
// relay message: the post is soft-deleted and the relay message removed.
func (h *MessageHandler) HandleDeleteCallback(ctx context.Context, query telego.CallbackQuery, postID string) error {
	logPrefix := fmt.Sprintf("[DelCallback Query:%s]", query.ID)
	localizer := locales.NewLocalizer()

	if err := h.store.DeletePost(ctx, postID); err != nil {
		log.Printf("%s Failed to delete post %s: %v", logPrefix, postID, err)
		sentry.CaptureException(fmt.Errorf("%s delete post: %w", logPrefix, err))
		return h.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: query.ID})
	}
	log.Printf("%s Post %s deleted", logPrefix, postID)

	if query.Message != nil {
		err := h.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
			ChatID:    tu.ID(query.Message.GetChat().ID),
			MessageID: query.Message.GetMessageID(),
		})
		if err != nil {
			log.Printf("%s Failed to remove relay message: %v", logPrefix, err)
		}
	}

	return h.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
		Text:            locales.GetMessage(localizer, "MsgPostDeleted", nil),
	})
}
