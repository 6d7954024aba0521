package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/tsfwatch/internal/auth"
	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/handler"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const validToken = "valid-session-token"

// fakeSession accepts validToken only.
type fakeSession struct {
	user *domain.UserAccount
}

func (f fakeSession) Authenticate(token string) *domain.UserAccount {
	if token != validToken {
		return nil
	}
	return f.user
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func withToken(r *http.Request) *http.Request {
	r.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: validToken})
	return r
}

func TestWithUser_AttachesAccountForToken(t *testing.T) {
	admin := &domain.UserAccount{Username: "admin", Role: domain.RoleAdmin}
	mw := NewAuthMiddleware(fakeSession{user: admin}, discardLogger(), false)

	var got *domain.UserAccount
	h := mw.WithUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.GetUserFromRequest(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), withToken(httptest.NewRequest("GET", "/api/facilities", nil)))

	if got == nil || got.Username != "admin" {
		t.Fatalf("expected admin in context, got %+v", got)
	}
}

func TestWithUser_NoTokenIsAnonymous(t *testing.T) {
	admin := &domain.UserAccount{Username: "admin", Role: domain.RoleAdmin}
	mw := NewAuthMiddleware(fakeSession{user: admin}, discardLogger(), false)

	var got *domain.UserAccount
	h := mw.WithUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.GetUserFromRequest(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/facilities", nil))

	if got != nil {
		t.Fatalf("expected anonymous request, got %+v", got)
	}
}

func TestWithUser_ClearsStaleCookie(t *testing.T) {
	mw := NewAuthMiddleware(fakeSession{user: &domain.UserAccount{Username: "admin"}}, discardLogger(), true)

	req := httptest.NewRequest("GET", "/api/facilities", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "revoked"})
	rec := httptest.NewRecorder()
	mw.WithUser(okHandler).ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != auth.SessionCookieName || cookies[0].MaxAge != -1 {
		t.Fatalf("expected session cookie to be cleared, got %+v", cookies)
	}
	if !cookies[0].Secure {
		t.Error("expected Secure flag on cleared cookie")
	}
}

func TestRequireUser(t *testing.T) {
	resident := &domain.UserAccount{Username: "resident", Role: domain.RoleResident}

	tests := []struct {
		name       string
		withToken  bool
		wantStatus int
	}{
		{name: "anonymous", withToken: false, wantStatus: http.StatusUnauthorized},
		{name: "signed in", withToken: true, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewAuthMiddleware(fakeSession{user: resident}, discardLogger(), false)
			h := Stack(mw.WithUser, mw.RequireUser)(okHandler)

			req := httptest.NewRequest("GET", "/api/analysis", nil)
			if tt.withToken {
				req = withToken(req)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestRequireUser_JSONEnvelope(t *testing.T) {
	mw := NewAuthMiddleware(fakeSession{}, discardLogger(), false)
	rec := httptest.NewRecorder()
	Stack(mw.WithUser, mw.RequireUser)(okHandler).ServeHTTP(rec, httptest.NewRequest("GET", "/api/markers", nil))

	var body handler.JSONError
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != domain.EUNAUTHORIZED {
		t.Errorf("expected code %s, got %s", domain.EUNAUTHORIZED, body.Error.Code)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		role       domain.Role
		wantStatus int
	}{
		{name: "admin allowed", role: domain.RoleAdmin, wantStatus: http.StatusOK},
		{name: "operator allowed", role: domain.RoleOperator, wantStatus: http.StatusOK},
		{name: "resident forbidden", role: domain.RoleResident, wantStatus: http.StatusForbidden},
		{name: "viewer forbidden", role: domain.RoleViewer, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewAuthMiddleware(fakeSession{user: &domain.UserAccount{Username: "u", Role: tt.role}}, discardLogger(), false)
			h := Stack(mw.WithUser, mw.RequireUser, mw.RequireRole(domain.RoleAdmin, domain.RoleOperator))(okHandler)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, withToken(httptest.NewRequest("POST", "/api/exports", nil)))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestStack_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Stack(mark("outer"), mark("inner"))(okHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("unexpected order: %v", order)
	}
}
