package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingTranslator is reported to MissingTranslationHandler when a
// template asks for a translation and no Translator is configured.
var ErrMissingTranslator = errors.New("render: translator not configured")

// ErrMissingTranslation is returned by MapTranslator for unknown keys.
var ErrMissingTranslation = errors.New("render: missing translation")

// Translator resolves message keys for a locale.
type Translator interface {
	Translate(locale, key string, params ...any) (string, error)
}

// MissingTranslationHandler decides the string rendered when a translation is
// unavailable. err is ErrMissingTranslator or the translator's error.
type MissingTranslationHandler func(locale, key string, params []any, err error) string

// missingTranslationDefault renders the key itself, or the "default" entry of
// a single map parameter when one is given.
func missingTranslationDefault(_ string, key string, params []any, _ error) string {
	if len(params) == 1 {
		if m, ok := params[0].(map[string]any); ok {
			if fallback := strings.TrimSpace(anyToString(m["default"])); fallback != "" {
				return fallback
			}
		}
	}
	return key
}

// MapTranslator is an in-memory message catalog keyed by locale, then message
// key. Lookups fall back from "es-MX" to "es" and finally to DefaultLocale.
type MapTranslator struct {
	DefaultLocale string
	Messages      map[string]map[string]string
}

var _ Translator = (*MapTranslator)(nil)

// Translate implements Translator. A single map parameter fills "{name}"
// placeholders; other parameters are applied with fmt.Sprintf.
func (t *MapTranslator) Translate(locale, key string, params ...any) (string, error) {
	if t == nil {
		return "", ErrMissingTranslator
	}
	for _, candidate := range t.candidates(locale) {
		msg, ok := t.Messages[candidate][key]
		if !ok {
			continue
		}
		return format(msg, params), nil
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrMissingTranslation, key, locale)
}

// Locales lists the catalog locales in sorted order.
func (t *MapTranslator) Locales() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.Messages))
	for locale := range t.Messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

func (t *MapTranslator) candidates(locale string) []string {
	locale = normalizeLocale(locale)
	out := make([]string, 0, 3)
	if locale != "" {
		out = append(out, locale)
		if base, _, ok := strings.Cut(locale, "-"); ok {
			out = append(out, base)
		}
	}
	if def := normalizeLocale(t.DefaultLocale); def != "" && def != locale {
		out = append(out, def)
	}
	return out
}

func normalizeLocale(locale string) string {
	return strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
}

func format(msg string, params []any) string {
	if len(params) == 0 {
		return msg
	}
	if len(params) == 1 {
		if named, ok := params[0].(map[string]any); ok {
			for k, v := range named {
				msg = strings.ReplaceAll(msg, "{"+k+"}", anyToString(v))
			}
			return msg
		}
	}
	if !strings.Contains(msg, "%") {
		return msg
	}
	return fmt.Sprintf(msg, params...)
}

// ParseMessages decodes a YAML message catalog:
//
//	default_locale: en
//	messages:
//	  en:
//	    greeting: Hello, {name}!
//	  es:
//	    greeting: Hola, {name}!
func ParseMessages(data []byte) (*MapTranslator, error) {
	var doc struct {
		DefaultLocale string                       `yaml:"default_locale"`
		Messages      map[string]map[string]string `yaml:"messages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("render: parse messages: %w", err)
	}
	messages := make(map[string]map[string]string, len(doc.Messages))
	for locale, entries := range doc.Messages {
		messages[normalizeLocale(locale)] = entries
	}
	return &MapTranslator{DefaultLocale: doc.DefaultLocale, Messages: messages}, nil
}

// LoadMessages reads a YAML message catalog from disk.
func LoadMessages(path string) (*MapTranslator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("render: read messages: %w", err)
	}
	return ParseMessages(data)
}

// LoadMessagesFS reads a YAML message catalog from fsys.
func LoadMessagesFS(fsys fs.FS, path string) (*MapTranslator, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("render: read messages: %w", err)
	}
	return ParseMessages(data)
}

func anyToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
