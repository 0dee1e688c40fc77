// Package bot wraps the telego update stream: it gates senders against the
// allow-list, routes messages to the ingestion handlers and dispatches
// relay delete callbacks.
package bot

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"channel-helper-bot/internal/auth"
	"channel-helper-bot/internal/handlers"
	"channel-helper-bot/internal/locales"
	"channel-helper-bot/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/ratelimit"
)

// deleteCommands are the /del command and its aliases.
var deleteCommands = map[string]struct{}{
	"del": {}, "delete": {}, "rem": {}, "remove": {},
}

// Bot reads updates from the long-polling channel and routes them.
type Bot struct {
	bot           telegoapi.BotAPI
	updatesChan   <-chan telego.Update
	handler       *handlers.MessageHandler
	senderChecker *auth.SenderChecker
	debug         bool
	ratelimiter   ratelimit.Limiter
}

// Deps holds the dependencies required by the Bot.
type Deps struct {
	Bot           telegoapi.BotAPI
	UpdatesChan   <-chan telego.Update
	Handler       *handlers.MessageHandler
	SenderChecker *auth.SenderChecker
	Debug         bool
}

// New creates a new Bot instance from its dependencies.
func New(deps Deps) (*Bot, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if deps.UpdatesChan == nil {
		return nil, fmt.Errorf("updates channel cannot be nil")
	}
	if deps.Handler == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}
	if deps.SenderChecker == nil {
		return nil, fmt.Errorf("sender checker cannot be nil")
	}
	return &Bot{
		bot:           deps.Bot,
		updatesChan:   deps.UpdatesChan,
		handler:       deps.Handler,
		senderChecker: deps.SenderChecker,
		debug:         deps.Debug,
		ratelimiter:   ratelimit.New(20),
	}, nil
}

// Start begins the update processing loop and blocks until ctx is cancelled
// or the updates channel closes.
func (b *Bot) Start(ctx context.Context) {
	log.Println("Listening for updates...")

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			log.Println("Context done, stopping update processing...")
			wg.Wait()
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				log.Println("Updates channel closed.")
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(up telego.Update) {
				defer wg.Done()
				b.processUpdate(ctx, up)
			}(update)
		}
	}
}

// processUpdate routes one update to the appropriate handler.
func (b *Bot) processUpdate(ctx context.Context, update telego.Update) {
	b.ratelimiter.Take()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in processUpdate: %v\n%s", r, debug.Stack())
			sentry.CurrentHub().Recover(r)
			sentry.Flush(time.Second * 2)
		}
	}()

	processingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch {
	case update.Message != nil:
		b.processMessage(processingCtx, *update.Message)
	case update.CallbackQuery != nil:
		b.processCallbackQuery(processingCtx, *update.CallbackQuery)
	default:
		if b.debug {
			log.Printf("Ignoring unhandled update type: %+v", update)
		}
	}
}

func (b *Bot) processMessage(ctx context.Context, message telego.Message) {
	logPrefix := fmt.Sprintf("[Update Chat:%d Msg:%d]", message.Chat.ID, message.MessageID)

	if !b.senderChecker.IsAllowed(message.Chat.ID) {
		log.Printf("%s Rejecting message from chat outside the allow-list", logPrefix)
		localizer := locales.NewLocalizer()
		msg := locales.GetMessage(localizer, "MsgNotAllowed", nil)
		_, err := b.bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), msg).
			WithReplyParameters(&telego.ReplyParameters{MessageID: message.MessageID}))
		if err != nil {
			log.Printf("%s Failed to send rejection: %v", logPrefix, err)
		}
		return
	}

	var err error
	switch {
	case strings.HasPrefix(message.Text, "/"):
		command := strings.TrimPrefix(strings.Split(message.Text, " ")[0], "/")
		// Commands may carry a @botname suffix in group chats.
		command = strings.Split(command, "@")[0]
		if _, ok := deleteCommands[command]; ok {
			err = b.handler.HandleDelete(ctx, message)
		} else {
			err = b.handler.HandleUnknown(ctx, message)
		}
	case message.Photo != nil:
		err = b.handler.HandlePhoto(ctx, message)
	case message.Video != nil:
		err = b.handler.HandleVideo(ctx, message)
	case message.Animation != nil:
		err = b.handler.HandleAnimation(ctx, message)
	default:
		err = b.handler.HandleUnknown(ctx, message)
	}
	if err != nil {
		log.Printf("%s Handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s handler error: %w", logPrefix, err))
	}
}

func (b *Bot) processCallbackQuery(ctx context.Context, query telego.CallbackQuery) {
	logPrefix := fmt.Sprintf("[Callback Query:%s]", query.ID)
	if b.debug {
		log.Printf("%s Received callback query with data %q", logPrefix, query.Data)
	}

	if postID, ok := handlers.IsDeleteCallback(query.Data); ok {
		if err := b.handler.HandleDeleteCallback(ctx, query, postID); err != nil {
			log.Printf("%s Delete callback error: %v", logPrefix, err)
			sentry.CaptureException(fmt.Errorf("%s delete callback: %w", logPrefix, err))
		}
		return
	}

	log.Printf("%s Callback query not handled", logPrefix)
	_ = b.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: query.ID})
}
