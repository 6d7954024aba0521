package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/tsfwatch/internal/auth"
	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/registry"
	"github.com/DukeRupert/tsfwatch/internal/risk"
)

var testNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, mux http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) JSONError {
	t.Helper()
	var body JSONError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

// =============================================================================
// Error mapping
// =============================================================================

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ETOOLARGE, http.StatusRequestEntityTooLarge},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"ESOMETHING", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "domain error",
			err:         domain.NotFound("op", "facility", "TSF-X"),
			wantStatus:  http.StatusNotFound,
			wantCode:    domain.ENOTFOUND,
			wantMessage: "not found",
		},
		{
			name:        "collaborator outage",
			err:         domain.Unavailable(errors.New("dial tcp: refused"), "op", "map server"),
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    domain.EINTERNAL,
			wantMessage: "internal error occurred",
		},
		{
			name:        "plain error hides details",
			err:         errors.New("pq: password authentication failed"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    domain.EINTERNAL,
			wantMessage: "internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ErrorResponse(rec, httptest.NewRequest("GET", "/api/x", nil), discardLogger(), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Contains(t, body.Error.Message, tt.wantMessage)
			assert.NotContains(t, rec.Body.String(), "dial tcp")
			assert.NotContains(t, rec.Body.String(), "pq:")
		})
	}
}

func TestValidationErrorResponse_DoesNotExposeOperationName(t *testing.T) {
	ve := domain.NewValidationError("SessionManager.Register", "username", "Username is required")

	rec := httptest.NewRecorder()
	ValidationErrorResponse(rec, httptest.NewRequest("POST", "/api/auth/register", nil), discardLogger(), ve)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "SessionManager")

	var body JSONError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Username is required", body.Error.Fields["username"])
}

// =============================================================================
// Auth
// =============================================================================

type fakeSessions struct {
	current    *domain.UserAccount
	loginErr   error
	gotType    *domain.UserType
	registered []domain.RegisterParams
	loggedOut  bool
}

const fakeToken = "0123456789abcdef"

func (f *fakeSessions) SignIn(_ context.Context, username, _ string, expectedType *domain.UserType) (*domain.UserAccount, string, error) {
	f.gotType = expectedType
	if f.loginErr != nil {
		return nil, "", f.loginErr
	}
	f.current = &domain.UserAccount{Username: strings.ToLower(username), Role: domain.RoleAdmin, UserType: domain.UserTypeOperator}
	return f.current, fakeToken, nil
}

func (f *fakeSessions) Register(_ context.Context, params domain.RegisterParams) (*domain.UserAccount, error) {
	if params.Username == "admin" {
		return nil, domain.Wrap(domain.ErrDuplicateUsername, domain.ECONFLICT, "op", "Username already exists")
	}
	if len(params.Username) < 3 {
		return nil, domain.Wrap(domain.ErrUsernameTooShort, domain.EINVALID, "op", "Username must be at least 3 characters")
	}
	f.registered = append(f.registered, params)
	return &domain.UserAccount{Username: params.Username, UserType: params.UserType}, nil
}

func (f *fakeSessions) Logout(context.Context) {
	f.loggedOut = true
	f.current = nil
}

func (f *fakeSessions) UsersByType(_ context.Context, userType domain.UserType) ([]domain.UserAccount, error) {
	return []domain.UserAccount{{Username: "resident", UserType: userType}}, nil
}

func newAuthMux(sessions SessionService) *http.ServeMux {
	h := NewAuthHandler(sessions, discardLogger(), true)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/users", h.Users)
	return mux
}

func TestAuthHandler_Login(t *testing.T) {
	operator := domain.UserTypeOperator

	tests := []struct {
		name       string
		body       any
		loginErr   error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "success",
			body:       loginRequest{Username: "ADMIN", Password: "admin123", UserType: &operator},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing password",
			body:       loginRequest{Username: "admin"},
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.EINVALID,
		},
		{
			name:       "unknown user type",
			body:       map[string]string{"username": "admin", "password": "x", "userType": "Visitor"},
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.EINVALID,
		},
		{
			name:       "unknown field",
			body:       map[string]string{"username": "admin", "password": "x", "remember": "yes"},
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.EINVALID,
		},
		{
			name:       "bad credentials",
			body:       loginRequest{Username: "admin", Password: "wrong"},
			loginErr:   domain.Wrap(domain.ErrInvalidCredentials, domain.EUNAUTHORIZED, "op", "Invalid username or password"),
			wantStatus: http.StatusUnauthorized,
			wantCode:   domain.EUNAUTHORIZED,
		},
		{
			name:       "type mismatch",
			body:       loginRequest{Username: "resident", Password: "resident123", UserType: &operator},
			loginErr:   domain.Wrap(domain.ErrUserTypeMismatch, domain.EFORBIDDEN, "op", "This account is not registered as a Operator"),
			wantStatus: http.StatusForbidden,
			wantCode:   domain.EFORBIDDEN,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &fakeSessions{loginErr: tt.loginErr}
			rec := serve(t, newAuthMux(sessions), "POST", "/api/auth/login", tt.body)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Error.Code)
				return
			}

			var resp sessionResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, domain.SessionAuthenticated, resp.State)
			assert.Equal(t, "admin", resp.User.Username)
			assert.Equal(t, fakeToken, resp.Token)

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
			assert.Equal(t, fakeToken, cookies[0].Value)
			assert.True(t, cookies[0].HttpOnly)
			assert.True(t, cookies[0].Secure)
			require.NotNil(t, sessions.gotType)
			assert.Equal(t, domain.UserTypeOperator, *sessions.gotType)
		})
	}
}

func TestAuthHandler_EmptyBody(t *testing.T) {
	rec := serve(t, newAuthMux(&fakeSessions{}), "POST", "/api/auth/login", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body is required", decodeError(t, rec).Error.Message)
}

func TestAuthHandler_EmptyCredentialsAreInvalidInput(t *testing.T) {
	rec := serve(t, newAuthMux(&fakeSessions{}), "POST", "/api/auth/login", loginRequest{Username: "admin"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, domain.EINVALID, body.Error.Code)
	assert.Equal(t, "Please enter both username and password", body.Error.Message)
}

// withAccount stands in for the auth middleware, which cannot be imported
// here.
func withAccount(user *domain.UserAccount, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != nil {
			r = r.WithContext(auth.SetUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func TestAuthHandler_Session(t *testing.T) {
	mux := newAuthMux(&fakeSessions{})

	rec := serve(t, withAccount(&domain.UserAccount{Username: "admin", PasswordHash: "$2a$secret"}, mux), "GET", "/api/auth/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"Authenticated"`)
	assert.NotContains(t, rec.Body.String(), "passwordHash")
	assert.NotContains(t, rec.Body.String(), `"token"`)

	rec = serve(t, withAccount(nil, mux), "GET", "/api/auth/session", nil)
	assert.Contains(t, rec.Body.String(), `"state":"Anonymous"`)
	assert.NotContains(t, rec.Body.String(), `"user"`)
}

func TestAuthHandler_Logout(t *testing.T) {
	sessions := &fakeSessions{current: &domain.UserAccount{Username: "admin"}}
	mux := newAuthMux(sessions)

	rec := serve(t, mux, "POST", "/api/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, sessions.loggedOut)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestAuthHandler_Register(t *testing.T) {
	sessions := &fakeSessions{}
	mux := newAuthMux(sessions)

	rec := serve(t, mux, "POST", "/api/auth/register", registerRequest{
		Username: "newop", Password: "secret1", ConfirmPassword: "secret1", FullName: "New Operator", UserType: domain.UserTypeOperator,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, sessions.registered, 1)
	assert.Equal(t, "New Operator", sessions.registered[0].FullName)
	assert.Nil(t, sessions.current, "registration must not sign in")

	rec = serve(t, mux, "POST", "/api/auth/register", registerRequest{Username: "admin", Password: "x", ConfirmPassword: "x", FullName: "A", UserType: domain.UserTypeOperator})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, mux, "POST", "/api/auth/register", registerRequest{Username: "ab", Password: "whatever123", ConfirmPassword: "whatever123", FullName: "Name", UserType: domain.UserTypeOperator})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body JSONError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Username must be at least 3 characters", body.Error.Message)
	assert.Equal(t, "Username must be at least 3 characters", body.Error.Fields["username"])
}

func TestAuthHandler_Users(t *testing.T) {
	mux := newAuthMux(&fakeSessions{})

	rec := serve(t, mux, "GET", "/api/users?type=Resident", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"resident"`)

	rec = serve(t, mux, "GET", "/api/users?type=Admin", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Dashboard
// =============================================================================

type fixedAnalysis struct{ result *domain.AnalysisResult }

func (f fixedAnalysis) Latest() *domain.AnalysisResult { return f.result }

func newDashboardMux() *http.ServeMux {
	reg := registry.New(testNow, discardLogger())
	engine := risk.NewEngine(risk.WithRand(rand.New(rand.NewPCG(1, 2))), risk.WithClock(func() time.Time { return testNow }))
	h := NewDashboardHandler(reg, engine, fixedAnalysis{result: engine.BaselineAnalysis()}, discardLogger())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func TestDashboardHandler_Facilities(t *testing.T) {
	rec := serve(t, newDashboardMux(), "GET", "/api/facilities", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var facilities []facilityView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&facilities))
	require.Len(t, facilities, 5)
	for _, f := range facilities {
		assert.InDelta(t, f.CurrentVolume/f.Capacity*100, f.CapacityUtilization, 1e-9)
	}
}

func TestDashboardHandler_Lookups(t *testing.T) {
	tests := []struct {
		target     string
		wantStatus int
		wantBody   string
	}{
		{"/api/facilities/TSF-KONKOLA-001", http.StatusOK, "Konkola Copper Mine TSF"},
		{"/api/facilities/TSF-NOPE-999", http.StatusNotFound, domain.ENOTFOUND},
		{"/api/facilities/TSF-KONKOLA-001/live", http.StatusOK, `"facilityId":"TSF-KONKOLA-001"`},
		{"/api/facilities/TSF-NOPE-999/live", http.StatusNotFound, domain.ENOTFOUND},
		{"/api/stations", http.StatusOK, "ENV-MON-004"},
		{"/api/stations/ENV-MON-001", http.StatusOK, "Kafue River Monitoring Point"},
		{"/api/stations/ENV-MON-999", http.StatusNotFound, domain.ENOTFOUND},
		{"/api/stations/status", http.StatusOK, "Kafue River Monitoring Point: Online (Normal)"},
		{"/api/markers", http.StatusOK, `"facilities"`},
		{"/api/analysis", http.StatusOK, `"labels"`},
		{"/api/compliance", http.StatusOK, `"overall"`},
		{"/api/compliance/GISTM", http.StatusOK, `"warningCount"`},
		{"/api/compliance/IFC%20EHS", http.StatusOK, `"IFC EHS"`},
		{"/api/compliance/NOPE", http.StatusNotFound, domain.ENOTFOUND},
	}

	mux := newDashboardMux()
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := serve(t, mux, "GET", tt.target, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestDashboardHandler_Analysis(t *testing.T) {
	rec := serve(t, newDashboardMux(), "GET", "/api/analysis", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TotalVolume     float64          `json:"totalVolume"`
		OverallRisk     domain.RiskLevel `json:"overallRisk"`
		FacilitiesCount int              `json:"facilitiesCount"`
		StabilityLabel  string           `json:"stabilityLabel"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 5, resp.FacilitiesCount)
	assert.NotEmpty(t, resp.StabilityLabel)
	assert.True(t, resp.OverallRisk.IsValid())
}

// =============================================================================
// Health
// =============================================================================

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
		wantDB     string
	}{
		{name: "no database", db: nil, wantStatus: http.StatusOK, wantDB: "disabled"},
		{name: "database up", db: fakePinger{}, wantStatus: http.StatusOK, wantDB: "ok"},
		{name: "database down", db: fakePinger{err: errors.New("connection refused")}, wantStatus: http.StatusServiceUnavailable, wantDB: "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, func() int { return 2 })
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp healthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantDB, resp.Database)
			assert.Equal(t, 2, resp.WSClients)
		})
	}
}
