package handlers

import (
	"fmt"

	"channel-helper-bot/internal/database"
	"channel-helper-bot/pkg/telegoapi"

	"github.com/go-resty/resty/v2"
)

// DefaultFileAPIURL is the Telegram server used to download media content.
const DefaultFileAPIURL = "https://api.telegram.org"

// MessageHandler applies the per-message ingestion policy: hashing and
// dedup for photos, straight persistence for video and animation, and the
// admin delete-by-reply flow.
type MessageHandler struct {
	bot        telegoapi.BotAPI
	store      database.PostStore
	client     *resty.Client
	token      string
	fileAPIURL string
}

// MessageHandlerDeps holds the dependencies required by the MessageHandler.
type MessageHandlerDeps struct {
	Bot   telegoapi.BotAPI
	Store database.PostStore
	// Token is the bot token used to build file download URLs.
	Token string
	// FileAPIURL overrides the Telegram file server. Empty means
	// DefaultFileAPIURL; tests point it at a local server.
	FileAPIURL string
}

// NewMessageHandler creates a new MessageHandler from its dependencies.
func NewMessageHandler(deps MessageHandlerDeps) (*MessageHandler, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("post store cannot be nil")
	}
	if deps.Token == "" {
		return nil, fmt.Errorf("bot token cannot be empty")
	}
	fileAPIURL := deps.FileAPIURL
	if fileAPIURL == "" {
		fileAPIURL = DefaultFileAPIURL
	}
	return &MessageHandler{
		bot:        deps.Bot,
		store:      deps.Store,
		client:     resty.New(),
		token:      deps.Token,
		fileAPIURL: fileAPIURL,
	}, nil
}
