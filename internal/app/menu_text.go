package app

import (
	"embed"
	"fmt"
	"path"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

// MenuText renders USSD screens in the configured language, falling back to English.
type MenuText struct {
	localizer *i18n.Localizer
}

func NewMenuText(lang string) (*MenuText, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded locales: %w", err)
	}
	for _, e := range entries {
		name := path.Join("locales", e.Name())
		data, err := localeFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", name, err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, name); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", name, err)
		}
	}

	return &MenuText{localizer: i18n.NewLocalizer(bundle, lang, language.English.String())}, nil
}

// T returns the message for id. Unknown ids come back unchanged.
func (m *MenuText) T(id string, data map[string]any) string {
	msg, err := m.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return id
	}
	return msg
}

func (m *MenuText) Month(month int) string {
	return m.T(fmt.Sprintf("month_%d", month), nil)
}
