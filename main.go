package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	appBot "channel-helper-bot/bot"
	"channel-helper-bot/internal/api"
	"channel-helper-bot/internal/auth"
	"channel-helper-bot/internal/config"
	"channel-helper-bot/internal/database"
	"channel-helper-bot/internal/handlers"
	"channel-helper-bot/internal/locales"
	"channel-helper-bot/internal/sender"
	"channel-helper-bot/internal/uploader"

	sentry "github.com/getsentry/sentry-go"
	telego "github.com/mymmrac/telego"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	locales.Init()

	err = sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.AppEnv,
		Release:     cfg.Version,
		Debug:       cfg.Debug,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	// A migration failure must abort startup.
	store, err := database.Open(cfg.DBPath)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	var bot *telego.Bot
	if cfg.Debug {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create telego bot: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to start long polling: %v", err)
	}

	senderChecker, err := auth.NewSenderChecker(cfg.AllowedSenders)
	if err != nil {
		log.Fatalf("Failed to create sender checker: %v", err)
	}

	messageHandler, err := handlers.NewMessageHandler(handlers.MessageHandlerDeps{
		Bot:   bot,
		Store: store,
		Token: cfg.BotToken,
	})
	if err != nil {
		log.Fatalf("Failed to create message handler: %v", err)
	}

	postSender, err := sender.New(sender.Deps{
		Bot:            bot,
		Store:          store,
		ChannelID:      cfg.TargetChannelID,
		Interval:       cfg.SendInterval,
		GroupThreshold: cfg.GroupThreshold,
	})
	if err != nil {
		log.Fatalf("Failed to create sender: %v", err)
	}
	go postSender.Run(ctx)

	if cfg.WithAPI {
		server, err := api.NewServer(store)
		if err != nil {
			log.Fatalf("Failed to create API server: %v", err)
		}
		go func() {
			// A listener bind failure is fatal to process start.
			if err := server.Run(cfg.APIAddr); err != nil {
				sentry.CaptureException(err)
				log.Fatalf("API server failed: %v", err)
			}
		}()

		taskUploader, err := uploader.New(uploader.Deps{
			Bot:          bot,
			Store:        store,
			UploadChatID: cfg.UploadChatID,
		})
		if err != nil {
			log.Fatalf("Failed to create uploader: %v", err)
		}
		go taskUploader.Run(ctx)
	}

	wrapper, err := appBot.New(appBot.Deps{
		Bot:           bot,
		UpdatesChan:   updates,
		Handler:       messageHandler,
		SenderChecker: senderChecker,
		Debug:         cfg.Debug,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}

	wrapper.Start(ctx)
	log.Println("Bot shutdown complete.")
}
