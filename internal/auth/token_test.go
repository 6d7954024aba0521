package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{name: "none", want: ""},
		{name: "cookie", cookie: "abc123", want: "abc123"},
		{name: "bearer", header: "Bearer abc123", want: "abc123"},
		{name: "bearer lower case", header: "bearer abc123", want: "abc123"},
		{name: "cookie wins", cookie: "fromcookie", header: "Bearer fromheader", want: "fromcookie"},
		{name: "basic auth ignored", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "bare prefix", header: "Bearer ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/analysis", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, TokenFromRequest(r))
		})
	}
}

func TestSessionCookie_SetAndClear(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "tok", 12*time.Hour, true)
	ClearSessionCookie(rec, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	set := cookies[0]
	assert.Equal(t, "tok", set.Value)
	assert.Equal(t, 12*60*60, set.MaxAge)
	assert.True(t, set.HttpOnly)
	assert.True(t, set.Secure)
	assert.Equal(t, http.SameSiteStrictMode, set.SameSite)

	assert.Equal(t, -1, cookies[1].MaxAge)
	assert.Empty(t, cookies[1].Value)
}
