package middleware

import (
	"net/http"
	"net/url"

	"github.com/rungomx/server/internal/auth"
	"github.com/rungomx/server/internal/i18n"
)

const localeCookieMaxAge = 365 * 24 * 60 * 60

// Locale stores the request locale for API routes. A supported ?locale=
// value wins over the locale cookie and Accept-Language.
func Locale(negotiator *i18n.Negotiator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := negotiator.Negotiate(r)
			if explicit, ok := i18n.ParseLocale(r.URL.Query().Get("locale")); ok {
				locale = explicit
			}
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(i18n.WithLocale(r.Context(), locale)))
		})
	}
}

// Pages handles locale-prefixed page routes:
//   - paths without a locale prefix redirect to the negotiated locale;
//   - protected routes without a session redirect to sign-in, carrying the
//     original URL as callbackUrl;
//   - auth routes with a session redirect to the dashboard.
//
// Requests that pass through carry the locale and the page pathname in their
// context. It must run after Session.
func Pages(negotiator *i18n.Negotiator, secureCookie bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale, pathname, ok := i18n.SplitLocalePath(r.URL.Path)
			if !ok {
				target := "/" + negotiator.Negotiate(r) + pathname
				if r.URL.RawQuery != "" {
					target += "?" + r.URL.RawQuery
				}
				http.Redirect(w, r, target, http.StatusTemporaryRedirect)
				return
			}

			_, signedIn := auth.PrincipalFromContext(r.Context())
			switch {
			case !signedIn && i18n.IsProtectedRoute(pathname):
				callback := r.URL.Path
				if r.URL.RawQuery != "" {
					callback += "?" + r.URL.RawQuery
				}
				http.Redirect(w, r, "/"+locale+"/sign-in?callbackUrl="+url.QueryEscape(callback), http.StatusFound)
				return
			case signedIn && i18n.IsAuthRoute(pathname):
				http.Redirect(w, r, "/"+locale+"/dashboard", http.StatusFound)
				return
			}

			rememberLocale(w, r, locale, secureCookie)
			w.Header().Set("Content-Language", locale)

			ctx := i18n.WithLocale(r.Context(), locale)
			ctx = i18n.WithPathname(ctx, r.URL.Path)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rememberLocale persists the locale chosen by URL so unprefixed links
// negotiate to it next time.
func rememberLocale(w http.ResponseWriter, r *http.Request, locale string, secure bool) {
	if c, err := r.Cookie(i18n.LocaleCookieName); err == nil && c.Value == locale {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     i18n.LocaleCookieName,
		Value:    locale,
		Path:     "/",
		MaxAge:   localeCookieMaxAge,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
