package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rungomx/server/internal/auth"
)

var testCSRFKey = []byte("12345678901234567890123456789012")

func withSessionCookie(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "session-token"})
	return req
}

func TestCSRFProtection_BlocksMissingTokenWithSessionCookie(t *testing.T) {
	handler := CSRFProtection(testCSRFKey, false)(okHandler())

	req := withSessionCookie(httptest.NewRequest(http.MethodPost, "/api/v1/registration-groups/join", strings.NewReader("{}")))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", res.Code)
	}
	if body := res.Body.String(); !strings.Contains(body, `"code":"FORBIDDEN"`) || !strings.Contains(body, "CSRF") {
		t.Errorf("expected FORBIDDEN envelope mentioning CSRF, got %s", body)
	}
}

func TestCSRFProtection_InvalidTokenBlocked(t *testing.T) {
	handler := CSRFProtection(testCSRFKey, false)(okHandler())

	req := withSessionCookie(httptest.NewRequest(http.MethodDelete, "/api/v1/registration-groups/g1", nil))
	req.Header.Set(CSRFHeader, "invalid-token-12345")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Errorf("expected status 403 with invalid token, got %d", res.Code)
	}
}

func TestCSRFProtection_SkipsRequestsWithoutSessionCookie(t *testing.T) {
	handler := CSRFProtection(testCSRFKey, false)(okHandler())

	// Bearer clients cannot be driven by a cross-site form.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/registration-groups/join", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer abc")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Errorf("expected bearer request to pass, got %d", res.Code)
	}
}

func TestCSRFProtection_SafeMethodsIssueToken(t *testing.T) {
	var token string
	handler := CSRFProtection(testCSRFKey, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = CSRFToken(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/csrf-token", nil))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200 for GET, got %d", res.Code)
	}
	if token == "" {
		t.Error("CSRF token should be available in request context")
	}

	found := false
	for _, cookie := range res.Result().Cookies() {
		if cookie.Name != "_gorilla_csrf" {
			continue
		}
		found = true
		if !cookie.HttpOnly {
			t.Error("CSRF cookie should be HttpOnly")
		}
		if cookie.Path != "/" {
			t.Errorf("CSRF cookie path should be /, got %s", cookie.Path)
		}
		if cookie.SameSite != http.SameSiteLaxMode {
			t.Errorf("CSRF cookie should be SameSite=Lax, got %v", cookie.SameSite)
		}
	}
	if !found {
		t.Error("CSRF cookie not set in response")
	}
}
