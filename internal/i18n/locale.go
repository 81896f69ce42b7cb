// Package i18n resolves the active locale for a request and loads the message
// bundles a route needs from the embedded messages tree.
package i18n

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

const (
	// DefaultLocale is used when nothing in the request selects a locale.
	DefaultLocale = "es"

	// LocaleCookieName stores an explicit locale choice.
	LocaleCookieName = "NEXT_LOCALE"
)

var supportedTags = []language.Tag{language.Spanish, language.English}

// Locales returns the supported locale codes, default first.
func Locales() []string {
	out := make([]string, 0, len(supportedTags))
	for _, tag := range supportedTags {
		out = append(out, baseOf(tag))
	}
	return out
}

// IsSupported reports whether locale is one of Locales.
func IsSupported(locale string) bool {
	_, ok := ParseLocale(locale)
	return ok
}

// ParseLocale normalizes value ("EN", "en-US") to a supported locale code.
func ParseLocale(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return "", false
	}
	base := baseOf(tag)
	for _, supported := range supportedTags {
		if baseOf(supported) == base {
			return base, true
		}
	}
	return "", false
}

// Negotiator picks a locale from the locale cookie or Accept-Language.
type Negotiator struct {
	defaultLocale string
	matcher       language.Matcher
}

// NewNegotiator builds a negotiator that falls back to defaultLocale. Unknown
// defaults fall back to DefaultLocale.
func NewNegotiator(defaultLocale string) *Negotiator {
	def, ok := ParseLocale(defaultLocale)
	if !ok {
		def = DefaultLocale
	}
	tags := []language.Tag{language.Make(def)}
	for _, tag := range supportedTags {
		if baseOf(tag) != def {
			tags = append(tags, tag)
		}
	}
	return &Negotiator{defaultLocale: def, matcher: language.NewMatcher(tags)}
}

func (n *Negotiator) Default() string {
	return n.defaultLocale
}

// Negotiate resolves the locale for r without looking at the path prefix.
func (n *Negotiator) Negotiate(r *http.Request) string {
	if r == nil {
		return n.defaultLocale
	}
	if cookie, err := r.Cookie(LocaleCookieName); err == nil {
		if locale, ok := ParseLocale(cookie.Value); ok {
			return locale
		}
	}
	accept := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if accept == "" {
		return n.defaultLocale
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return n.defaultLocale
	}
	tag, _, confidence := n.matcher.Match(tags...)
	if confidence == language.No {
		return n.defaultLocale
	}
	if locale, ok := ParseLocale(baseOf(tag)); ok {
		return locale
	}
	return n.defaultLocale
}

// SplitLocalePath separates a leading locale segment from path. "/en/sign-in"
// yields ("en", "/sign-in", true); "/sign-in" yields ("", "/sign-in", false).
func SplitLocalePath(path string) (locale, rest string, ok bool) {
	if path == "" {
		path = "/"
	}
	trimmed := strings.TrimPrefix(path, "/")
	segment, remainder, _ := strings.Cut(trimmed, "/")
	for _, locale := range Locales() {
		if segment == locale {
			return locale, "/" + remainder, true
		}
	}
	return "", path, false
}

func baseOf(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

type contextKey string

const (
	localeKey   contextKey = "i18n_locale"
	pathnameKey contextKey = "i18n_pathname"
)

// WithLocale stores the resolved locale on ctx.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey, locale)
}

// LocaleFromContext returns the locale stored by WithLocale, if any.
func LocaleFromContext(ctx context.Context) (string, bool) {
	locale, ok := ctx.Value(localeKey).(string)
	return locale, ok && locale != ""
}

// WithPathname remembers the locale-less pathname of the current page so later
// message loading can scope bundles to it.
func WithPathname(ctx context.Context, pathname string) context.Context {
	return context.WithValue(ctx, pathnameKey, pathname)
}

// PathnameFromContext returns the pathname stored by WithPathname, if any.
func PathnameFromContext(ctx context.Context) (string, bool) {
	pathname, ok := ctx.Value(pathnameKey).(string)
	return pathname, ok && pathname != ""
}
