// Package locales provides localization for the bot's user-facing replies.
package locales

import (
	"embed"
	"encoding/json"
	"log"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed *.json
var localeFS embed.FS

var (
	bundle          *i18n.Bundle
	defaultLanguage = language.English
)

// Init initializes the i18n bundle from the embedded message files. It must
// be called once at startup before any localizer is created.
func Init() {
	bundle = i18n.NewBundle(defaultLanguage)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir(".")
	if err != nil {
		log.Fatalf("Failed to read embedded locales directory: %v", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, entry.Name()); err != nil {
			log.Printf("WARN: Failed to load message file %q: %v", entry.Name(), err)
			continue
		}
		loaded++
	}
	if loaded == 0 {
		log.Fatal("No message files loaded from locales/")
	}
}

// NewLocalizer creates a localizer for the given language preferences,
// falling back to the default language.
func NewLocalizer(langPrefs ...string) *i18n.Localizer {
	if bundle == nil {
		log.Panicln("locales.NewLocalizer called before locales.Init")
	}
	return i18n.NewLocalizer(bundle, append(langPrefs, defaultLanguage.String())...)
}

// GetMessage retrieves and formats a message by its ID. templateData may be
// nil for messages without template variables. On failure the message ID
// itself is returned so replies never come out empty.
func GetMessage(localizer *i18n.Localizer, msgID string, templateData map[string]interface{}) string {
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: templateData,
	})
	if err != nil {
		log.Printf("ERROR: Failed to localize message ID %q: %v", msgID, err)
		return msgID
	}
	return msg
}
