package i18n

import "net/http"

// langCookieName holds an explicit language choice made in the console.
const langCookieName = "lang"

// Middleware injects a localizer into every request context. An explicit
// ?lang= query or lang cookie wins over Accept-Language; the default language
// given to Init is the last fallback. The lang cookie is scoped to cookiePath,
// or "/" when it is empty.
func Middleware(cookiePath string) func(http.Handler) http.Handler {
	if cookiePath == "" {
		cookiePath = "/"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var prefs []string
			if q := r.URL.Query().Get("lang"); q != "" {
				prefs = append(prefs, q)
				http.SetCookie(w, &http.Cookie{
					Name:     langCookieName,
					Value:    q,
					Path:     cookiePath,
					SameSite: http.SameSiteLaxMode,
				})
			} else if c, err := r.Cookie(langCookieName); err == nil && c.Value != "" {
				prefs = append(prefs, c.Value)
			}
			if al := r.Header.Get("Accept-Language"); al != "" {
				prefs = append(prefs, al)
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(prefs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
