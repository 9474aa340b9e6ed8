package views

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/goliatone/go-views/pkg/render"
)

// I18n selects a message catalog and the locale to render with. Translator
// wins over MessagesFile, which wins over MessagesFS/MessagesPath.
type I18n struct {
	Locale string

	Translator   render.Translator
	MessagesFile string
	MessagesFS   fs.FS
	MessagesPath string

	once       sync.Once
	translator render.Translator
	err        error
}

// NewI18n returns an I18n using translator for locale.
func NewI18n(locale string, translator render.Translator) *I18n {
	return &I18n{Locale: locale, Translator: translator}
}

// Catalog returns the translator for this request, loading the message file
// at most once. It returns nil without error when no catalog is configured.
func (i *I18n) Catalog() (render.Translator, error) {
	if i == nil {
		return nil, nil
	}
	i.once.Do(func() {
		switch {
		case i.Translator != nil:
			i.translator = i.Translator
		case i.MessagesFile != "":
			i.translator, i.err = render.LoadMessages(i.MessagesFile)
		case i.MessagesFS != nil:
			if i.MessagesPath == "" {
				i.err = errors.New("views: messages path required with messages fs")
				return
			}
			i.translator, i.err = render.LoadMessagesFS(i.MessagesFS, i.MessagesPath)
		}
	})
	return i.translator, i.err
}

// Locale returns the request locale, or "".
func Locale(c *Context) string {
	if c == nil || c.I18n == nil {
		return ""
	}
	return c.I18n.Locale
}

// Catalog returns the request translator, or nil when none is configured.
func Catalog(c *Context) (render.Translator, error) {
	if c == nil {
		return nil, nil
	}
	return c.I18n.Catalog()
}
