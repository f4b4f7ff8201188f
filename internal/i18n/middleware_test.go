package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveLang(t *testing.T, cookiePath string, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var got string
	h := Middleware(cookiePath)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "NavHistory")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func TestMiddlewareLangCookiePath(t *testing.T) {
	initLang(t, "en")

	tests := []struct {
		cookiePath string
		want       string
	}{
		{"", "/"},
		{"/admin/", "/admin/"},
	}
	for _, tt := range tests {
		rec, got := serveLang(t, tt.cookiePath, httptest.NewRequest(http.MethodGet, "/admin/?lang=ru", nil))
		if got != "История" {
			t.Errorf("cookiePath %q: T(NavHistory) = %q, want Russian", tt.cookiePath, got)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != langCookieName {
			t.Fatalf("cookiePath %q: cookies = %v, want one lang cookie", tt.cookiePath, cookies)
		}
		if cookies[0].Path != tt.want || cookies[0].Value != "ru" {
			t.Errorf("cookiePath %q: cookie = %s=%s path %q, want ru path %q",
				tt.cookiePath, cookies[0].Name, cookies[0].Value, cookies[0].Path, tt.want)
		}
	}
}

func TestMiddlewareCookieBeatsAcceptLanguage(t *testing.T) {
	initLang(t, "en")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: langCookieName, Value: "ru"})
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	rec, got := serveLang(t, "/", req)
	if got != "История" {
		t.Errorf("T(NavHistory) = %q, want Russian from cookie", got)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("cookie should only be set for an explicit ?lang=")
	}
}
