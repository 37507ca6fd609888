// Package i18n holds the translated bot messages and the locale rules used to
// render the numbers inside them.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed locales/*.json
var localesFS embed.FS

// DefaultLanguage is served when the sender's language is not supported.
const DefaultLanguage = "en"

// supported lists the message languages, the default first.
//
//nolint:gochecknoglobals // fixed language table
var supported = []language.Tag{language.English, language.Ukrainian}

//nolint:gochecknoglobals // built once from supported
var matcher = language.NewMatcher(supported)

// locale is one loaded language: its messages and its number rules.
type locale struct {
	tag      language.Tag
	messages map[string]string
}

// Localizer serves bot messages in the supported languages. It is read-only
// after NewLocalizer and safe for concurrent use.
type Localizer struct {
	locales map[string]locale
}

// NewLocalizer loads the messages of every supported language.
func NewLocalizer() (*Localizer, error) {
	localizer := &Localizer{locales: make(map[string]locale, len(supported))}

	for _, tag := range supported {
		code := baseCode(tag)
		messages, err := readMessages(code)
		if err != nil {
			return nil, fmt.Errorf("failed to load language %s: %w", code, err)
		}
		localizer.locales[code] = locale{tag: tag, messages: messages}
	}

	return localizer, nil
}

func readMessages(code string) (map[string]string, error) {
	filename := "locales/" + code + ".json"
	data, err := localesFS.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read locale file %s: %w", filename, err)
	}

	var messages map[string]string
	if err = json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal locale file %s: %w", filename, err)
	}
	return messages, nil
}

func baseCode(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// Get returns the message for key in lang, the English message when lang
// lacks it, and the key itself when no language has it.
func (l *Localizer) Get(lang, key string) string {
	if msg, ok := l.locales[lang].messages[key]; ok {
		return msg
	}
	if msg, ok := l.locales[DefaultLanguage].messages[key]; ok {
		return msg
	}
	return key
}

// GetWithData returns the message for key with its {placeholders} replaced.
// Integer values are formatted with the number rules of lang.
func (l *Localizer) GetWithData(lang, key string, data map[string]any) string {
	msg := l.Get(lang, key)

	for name, value := range data {
		var text string
		switch v := value.(type) {
		case int:
			text = l.FormatNumber(lang, v)
		default:
			text = fmt.Sprint(v)
		}
		msg = strings.ReplaceAll(msg, "{"+name+"}", text)
	}

	return msg
}

// FormatNumber renders n with the digit grouping of lang, e.g. 12,345 in
// English and 12 345 (no-break space) in Ukrainian.
func (l *Localizer) FormatNumber(lang string, n int) string {
	tag := language.English
	if loc, ok := l.locales[lang]; ok {
		tag = loc.tag
	}
	return message.NewPrinter(tag).Sprintf("%d", n)
}

// Languages returns the loaded language codes, the default first.
func (l *Localizer) Languages() []string {
	langs := make([]string, 0, len(supported))
	for _, tag := range supported {
		if _, ok := l.locales[baseCode(tag)]; ok {
			langs = append(langs, baseCode(tag))
		}
	}
	return langs
}

// NormalizeLanguageCode maps a Telegram language code such as "uk-UA" to a
// supported language, English by default.
func NormalizeLanguageCode(telegramLang string) string {
	// "ua" is the country code, often sent in place of the language
	if strings.EqualFold(telegramLang, "ua") || strings.HasPrefix(strings.ToLower(telegramLang), "ua-") {
		return "uk"
	}

	tag, err := language.Parse(telegramLang)
	if err != nil {
		return DefaultLanguage
	}

	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return DefaultLanguage
	}
	return baseCode(supported[index])
}
