// Package sender implements the interval publish loop: every tick it picks
// an unsent post at random and delivers it to the target channel, switching
// to batched album delivery when the photo backlog exceeds the configured
// threshold.
package sender

import (
	"context"
	"fmt"
	"log"
	"time"

	"channel-helper-bot/internal/database"
	"channel-helper-bot/internal/database/models"
	"channel-helper-bot/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Sender publishes unsent posts to the target channel on a fixed interval.
type Sender struct {
	bot            telegoapi.BotAPI
	store          database.PostStore
	channelID      int64
	interval       time.Duration
	groupThreshold int
}

// Deps holds the dependencies required by the Sender.
type Deps struct {
	Bot       telegoapi.BotAPI
	Store     database.PostStore
	ChannelID int64
	Interval  time.Duration
	// GroupThreshold is the unsent backlog size above which photos are sent
	// as one grouped album instead of a single item. Zero disables batching.
	GroupThreshold int
}

// New creates a Sender from its dependencies.
func New(deps Deps) (*Sender, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("post store cannot be nil")
	}
	if deps.ChannelID == 0 {
		return nil, fmt.Errorf("target channel ID cannot be zero")
	}
	if deps.Interval <= 0 {
		return nil, fmt.Errorf("send interval must be positive")
	}
	return &Sender{
		bot:            deps.Bot,
		store:          deps.Store,
		channelID:      deps.ChannelID,
		interval:       deps.Interval,
		groupThreshold: deps.GroupThreshold,
	}, nil
}

// Run executes the publish loop until ctx is cancelled. The ticker keeps an
// absolute schedule, so a slow publish does not push later ticks back.
func (s *Sender) Run(ctx context.Context) {
	log.Printf("[Sender] Publishing to channel %d every %v (group threshold %d)", s.channelID, s.interval, s.groupThreshold)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Sender] Context done, stopping")
			return
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				// Affected posts stay unsent and become eligible again on a
				// future tick; there is no separate backoff.
				log.Printf("[Sender] Publish failed: %v", err)
				sentry.CaptureException(fmt.Errorf("[Sender] publish: %w", err))
			}
		}
	}
}

// tick runs one publish pass: select a candidate, deliver it single or
// batched, mark delivered posts sent.
func (s *Sender) tick(ctx context.Context) error {
	unsent, err := s.store.UnsentPostsCount(ctx)
	if err != nil {
		return fmt.Errorf("count unsent posts: %w", err)
	}

	candidate, err := s.store.FetchUnsentPost(ctx)
	if err != nil {
		return fmt.Errorf("fetch unsent post: %w", err)
	}
	if candidate == nil {
		return nil
	}

	if candidate.IsPhoto() && s.groupThreshold > 0 && unsent > s.groupThreshold {
		return s.sendBatch(ctx)
	}
	return s.sendSingle(ctx, candidate)
}

// sendBatch delivers up to ten unsent photos as one grouped album. A batch
// of one degrades to single delivery.
func (s *Sender) sendBatch(ctx context.Context) error {
	posts, err := s.store.FetchTenUnsentPhotoPosts(ctx)
	if err != nil {
		return fmt.Errorf("fetch unsent photo posts: %w", err)
	}
	if len(posts) == 0 {
		return nil
	}
	if len(posts) == 1 {
		return s.sendSingle(ctx, &posts[0])
	}

	media := make([]telego.InputMedia, 0, len(posts))
	ids := make([]string, 0, len(posts))
	for _, post := range posts {
		media = append(media, tu.MediaPhoto(tu.FileFromID(post.FileID)))
		ids = append(ids, post.ID)
	}

	_, err = s.bot.SendMediaGroup(ctx, &telego.SendMediaGroupParams{
		ChatID: tu.ID(s.channelID),
		Media:  media,
	})
	if err != nil {
		return fmt.Errorf("send media group: %w", err)
	}
	log.Printf("[Sender] Sent album of %d photos", len(posts))

	if err := s.store.MarkSentPosts(ctx, ids); err != nil {
		return fmt.Errorf("mark posts sent: %w", err)
	}
	return nil
}

// sendSingle delivers one post with the operation matching its media type.
func (s *Sender) sendSingle(ctx context.Context, post *models.Post) error {
	var err error
	switch post.MediaType {
	case models.MediaTypePhoto:
		_, err = s.bot.SendPhoto(ctx, &telego.SendPhotoParams{
			ChatID: tu.ID(s.channelID),
			Photo:  tu.FileFromID(post.FileID),
		})
	case models.MediaTypeVideo:
		_, err = s.bot.SendVideo(ctx, &telego.SendVideoParams{
			ChatID: tu.ID(s.channelID),
			Video:  tu.FileFromID(post.FileID),
		})
	case models.MediaTypeAnimation:
		_, err = s.bot.SendAnimation(ctx, &telego.SendAnimationParams{
			ChatID:    tu.ID(s.channelID),
			Animation: tu.FileFromID(post.FileID),
		})
	default:
		return fmt.Errorf("unknown media type %q for post %s", post.MediaType, post.ID)
	}
	if err != nil {
		return fmt.Errorf("send %s: %w", post.MediaType, err)
	}
	log.Printf("[Sender] Sent %s post %s", post.MediaType, post.ID)

	if err := s.store.MarkSentPosts(ctx, []string{post.ID}); err != nil {
		return fmt.Errorf("mark post sent: %w", err)
	}
	return nil
}
