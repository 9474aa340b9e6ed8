package render

import (
	"fmt"
	"reflect"
	"strings"
)

// TemplateI18nConfig configures the helpers returned by TemplateI18nFuncs.
type TemplateI18nConfig struct {
	// LocaleKey is the key (or struct field, case-insensitive) read from a
	// non-string locale source. Defaults to "locale".
	LocaleKey string
	// FuncName renames the translate helper. Defaults to "translate".
	FuncName string
	// DefaultLocale applies when the locale source yields nothing.
	DefaultLocale string
	// OnMissing decides the output for unavailable translations.
	OnMissing MissingTranslationHandler
}

// TemplateI18nFuncs returns template helpers backed by t:
//
//	translate(src, key, params...)  the message, or OnMissing's fallback
//	has_translation(src, key)       whether t knows key for the locale
//	current_locale(src)             the resolved locale
//
// src is a locale string or a map/struct carrying one under LocaleKey;
// templates usually pass the injected overlay, as in translate(ij, "title").
func TemplateI18nFuncs(t Translator, cfg TemplateI18nConfig) map[string]any {
	h := &templateI18n{
		translator:    t,
		localeKey:     strings.TrimSpace(cfg.LocaleKey),
		defaultLocale: strings.TrimSpace(cfg.DefaultLocale),
		onMissing:     cfg.OnMissing,
	}
	if h.localeKey == "" {
		h.localeKey = "locale"
	}
	if h.onMissing == nil {
		h.onMissing = missingTranslationDefault
	}

	name := strings.TrimSpace(cfg.FuncName)
	if name == "" {
		name = "translate"
	}
	return map[string]any{
		name:              h.translate,
		"has_translation": h.has,
		"current_locale":  h.locale,
	}
}

type templateI18n struct {
	translator    Translator
	localeKey     string
	defaultLocale string
	onMissing     MissingTranslationHandler
}

func (h *templateI18n) locale(src any) string {
	if l := localeOf(src, h.localeKey); l != "" {
		return l
	}
	return h.defaultLocale
}

func (h *templateI18n) translate(src any, key string, params ...any) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	locale := h.locale(src)
	if h.translator == nil {
		return h.onMissing(locale, key, params, ErrMissingTranslator)
	}
	msg, err := h.translator.Translate(locale, key, params...)
	if err != nil || strings.TrimSpace(msg) == "" {
		return h.onMissing(locale, key, params, err)
	}
	return msg
}

func (h *templateI18n) has(src any, key string) bool {
	key = strings.TrimSpace(key)
	if h.translator == nil || key == "" {
		return false
	}
	msg, err := h.translator.Translate(h.locale(src), key)
	return err == nil && strings.TrimSpace(msg) != ""
}

// localeOf extracts a locale from a string, a string-keyed map or a struct
// field named key.
func localeOf(src any, key string) string {
	switch v := src.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]string:
		return strings.TrimSpace(v[key])
	case map[string]any:
		if s, ok := v[key].(string); ok {
			return strings.TrimSpace(s)
		}
		if v[key] != nil {
			return strings.TrimSpace(fmt.Sprint(v[key]))
		}
		return ""
	}

	rv := reflect.Indirect(reflect.ValueOf(src))
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		f := rv.FieldByNameFunc(func(name string) bool { return strings.EqualFold(name, key) })
		if f.IsValid() && f.Kind() == reflect.String {
			return strings.TrimSpace(f.String())
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return ""
		}
		if e := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key())); e.IsValid() {
			if e.Kind() == reflect.Interface {
				e = e.Elem()
			}
			if e.Kind() == reflect.String {
				return strings.TrimSpace(e.String())
			}
		}
	}
	return ""
}
