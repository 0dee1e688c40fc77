// Package uploader drains the staging queue of externally submitted media:
// each photo task is republished through the relay chat to obtain a stable
// file id, re-checked against the dedup index, and finalized as a post.
package uploader

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"channel-helper-bot/internal/database"
	"channel-helper-bot/internal/database/models"
	"channel-helper-bot/internal/handlers"
	"channel-helper-bot/internal/locales"
	"channel-helper-bot/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Uploader is the staging queue consumer.
type Uploader struct {
	bot          telegoapi.BotAPI
	store        database.UploadTaskStore
	uploadChatID int64

	// sleep is swapped out in tests to avoid real rate-limit waits.
	sleep func(ctx context.Context, d time.Duration)
}

// Deps holds the dependencies required by the Uploader.
type Deps struct {
	Bot   telegoapi.BotAPI
	Store database.UploadTaskStore
	// UploadChatID is the relay chat media is republished to.
	UploadChatID int64
}

// New creates an Uploader from its dependencies.
func New(deps Deps) (*Uploader, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("upload task store cannot be nil")
	}
	if deps.UploadChatID == 0 {
		return nil, fmt.Errorf("upload chat ID cannot be zero")
	}
	return &Uploader{
		bot:          deps.Bot,
		store:        deps.Store,
		uploadChatID: deps.UploadChatID,
		sleep:        sleepCtx,
	}, nil
}

// Run drains all tasks left over from a previous run, then blocks on the
// store's doorbell and drains to exhaustion after every wake. Wakes raised
// while draining coalesce into one pending signal; no task is stranded
// because Drain always empties the queue before Run waits again.
func (u *Uploader) Run(ctx context.Context) {
	log.Printf("[Uploader] Draining tasks queued before startup")
	u.Drain(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("[Uploader] Context done, stopping")
			return
		case <-u.store.TaskAdded():
			u.Drain(ctx)
		}
	}
}

// Drain processes unprocessed tasks until the queue is empty or a task is
// deliberately left for a later pass (rate limit or publish failure).
func (u *Uploader) Drain(ctx context.Context) {
	for ctx.Err() == nil {
		task, err := u.store.FetchUnprocessedUploadTask(ctx)
		if err != nil {
			log.Printf("[Uploader] Error fetching upload task: %v", err)
			sentry.CaptureException(fmt.Errorf("[Uploader] fetch upload task: %w", err))
			return
		}
		if task == nil {
			return
		}
		if !u.process(ctx, task) {
			// The task stays unprocessed; retry on the next drain pass
			// instead of spinning on it now.
			return
		}
	}
}

// process handles one task. The return value tells Drain whether to keep
// going: false means the task hit a publish failure and draining should
// stop until the next wake.
func (u *Uploader) process(ctx context.Context, task *models.UploadTask) bool {
	logPrefix := fmt.Sprintf("[Uploader Task:%s]", task.ID)

	switch task.MediaType {
	case models.MediaTypePhoto:
		return u.processPhoto(ctx, task, logPrefix)
	case models.MediaTypeVideo, models.MediaTypeAnimation:
		// Declared unsupported for staged uploads, not a failure.
		log.Printf("%s Unsupported media type %s, completing without publishing", logPrefix, task.MediaType)
		u.complete(ctx, task, logPrefix)
		return true
	default:
		log.Printf("%s Unknown media type %q, completing without publishing", logPrefix, task.MediaType)
		u.complete(ctx, task, logPrefix)
		return true
	}
}

func (u *Uploader) processPhoto(ctx context.Context, task *models.UploadTask, logPrefix string) bool {
	log.Printf("%s Publishing photo to relay chat %d", logPrefix, u.uploadChatID)

	// The post id is generated before publishing so the relay message's
	// delete button can reference it.
	postID := uuid.Must(uuid.NewV7()).String()

	localizer := locales.NewLocalizer()
	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnDelete", nil)).
				WithCallbackData(handlers.DeleteCallbackData(postID)),
		),
	)

	msg, err := u.bot.SendPhoto(ctx, &telego.SendPhotoParams{
		ChatID:      tu.ID(u.uploadChatID),
		Photo:       tu.File(tu.NameReader(bytes.NewReader(task.Data), "upload.jpg")),
		ReplyMarkup: keyboard,
	})
	if err != nil {
		if wait, ok := parseRetryAfter(err.Error()); ok {
			// Bounded backoff dictated entirely by the remote service. All
			// further draining blocks until it elapses; the task is retried
			// on the next drain pass.
			log.Printf("%s Rate limited, waiting %v", logPrefix, wait)
			u.sleep(ctx, wait)
			return true
		}
		log.Printf("%s Relay publish error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s relay publish: %w", logPrefix, err))
		return false
	}

	// A duplicate may have been ingested while this task sat in the queue.
	// The already-published relay message is not retracted.
	exists, err := u.store.PostWithHashExists(ctx, task.ImageHash)
	if err != nil {
		log.Printf("%s Error re-checking hash: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s recheck hash: %w", logPrefix, err))
		return false
	}
	if exists {
		log.Printf("%s Duplicate arrived during staging, discarding", logPrefix)
		u.complete(ctx, task, logPrefix)
		return true
	}

	photo := msg.Photo[0]
	for _, p := range msg.Photo {
		if p.FileSize > photo.FileSize {
			photo = p
		}
	}

	_, err = u.store.CreatePost(ctx, database.CreatePostParams{
		ID:        postID,
		MediaType: models.MediaTypePhoto,
		FileID:    photo.FileID,
		ImageHash: task.ImageHash,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
	})
	if err != nil {
		log.Printf("%s Error saving post: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s save post: %w", logPrefix, err))
		return false
	}

	u.complete(ctx, task, logPrefix)
	log.Printf("%s Uploaded photo as post %s", logPrefix, postID)
	return true
}

func (u *Uploader) complete(ctx context.Context, task *models.UploadTask, logPrefix string) {
	if err := u.store.MarkCompleteUploadTask(ctx, task.ID); err != nil {
		log.Printf("%s Error marking task complete: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s mark task complete: %w", logPrefix, err))
	}
}

// parseRetryAfter extracts the mandated wait from a Telegram 429 error
// string of the form "...: Too Many Requests: retry after N".
func parseRetryAfter(errorString string) (time.Duration, bool) {
	if !strings.Contains(errorString, "Too Many Requests") && !strings.Contains(errorString, "429") {
		return 0, false
	}
	fields := strings.Fields(errorString)
	if len(fields) >= 2 && fields[len(fields)-2] == "after" {
		var seconds int
		if _, err := fmt.Sscan(fields[len(fields)-1], &seconds); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second, true
		}
	}
	return 0, false
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
