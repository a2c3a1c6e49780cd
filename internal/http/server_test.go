package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"wallet/internal/core"
	"wallet/internal/export"
	"wallet/internal/services"
	"wallet/internal/session"
	"wallet/internal/session/local"
	"wallet/internal/session/supabase"
	"wallet/internal/store/memory"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "demo-password"
)

type testEnv struct {
	srv     *Server
	entries *services.EntryService
	users   *session.MemoryRegistry
}

func newTestEnv(t *testing.T, ready func(context.Context) error) *testEnv {
	t.Helper()
	entries := services.NewEntryService(memory.NewSeeded(), nil)
	reports := services.NewReportService(entries, time.Minute)
	entries.OnAppend(reports.Invalidate)

	provider, err := local.New(local.NewMemoryCredentials(), nil, local.Config{
		Secret:     []byte("test-secret-0123456789"),
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	users := session.NewMemoryRegistry()
	srv := NewServer(":0", Deps{
		Entries:            entries,
		Reports:            reports,
		Sessions:           provider,
		Users:              users,
		Ready:              ready,
		Demo:               DemoAccount{Email: demoEmail, Password: demoPassword},
		RateLimitPerMinute: 1000,
	})
	t.Cleanup(func() { srv.limiter.Stop() })
	return &testEnv{srv: srv, entries: entries, users: users}
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) demoToken(t *testing.T) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/auth/demo", "", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	}

	down := newTestEnv(t, func(context.Context) error { return errors.New("db down") })
	rr := down.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/api/expenses", "/api/income/totals", "/api/analytics", "/api/dashboard", "/api/calendar", "/api/export.xlsx"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
		body := decode(t, rr)
		assert.NotEmpty(t, body["error"])
		assert.NotNil(t, body["notification"])
	}

	rr := env.do(t, http.MethodGet, "/api/expenses", "", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDemoSignInRegistersUser(t *testing.T) {
	env := newTestEnv(t, nil)

	token := env.demoToken(t)
	rr := env.do(t, http.MethodGet, "/api/auth/session", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	user := decode(t, rr)["user"].(map[string]any)
	assert.Equal(t, demoEmail, user["email"])

	// second demo sign-in reuses the account
	again := env.demoToken(t)
	assert.NotEmpty(t, again)

	rr = env.do(t, http.MethodGet, "/api/auth/session", "", again)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, user["id"], decode(t, rr)["user"].(map[string]any)["id"])
}

func TestSignUpSignInAndSignOut(t *testing.T) {
	env := newTestEnv(t, nil)
	creds := `{"email":"ada@example.com","password":"s3cret-pass"}`

	rr := env.do(t, http.MethodPost, "/api/auth/sign-up", `{"email":"ada@example.com","password":"123"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decode(t, rr)["details"], "password")

	rr = env.do(t, http.MethodPost, "/api/auth/sign-up", creds, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, rr.Result().Cookies(), 1)

	rr = env.do(t, http.MethodPost, "/api/auth/sign-up", creds, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/auth/sign-in", `{"email":"ada@example.com","password":"wrong-pass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid login credentials", decode(t, rr)["error"])

	rr = env.do(t, http.MethodPost, "/api/auth/sign-in", `{"email":"not-an-email","password":"x"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/auth/sign-in", creds, "")
	require.Equal(t, http.StatusOK, rr.Code)
	token := decode(t, rr)["access_token"].(string)

	rr = env.do(t, http.MethodGet, "/api/expenses", "", token)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/auth/sign-out", "", token)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/expenses", "", token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "revoked token must not authenticate")
}

func TestSignUpAwaitingConfirmation(t *testing.T) {
	registered := make(chan string, 1)
	gotrue := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/v1/signup":
			// without auto-confirm GoTrue answers with the user only
			_, _ = w.Write([]byte(`{"id":"3f1c1a7e-8b7d-4c52-9b8e-0a6d2a0e4b11","email":"ada@example.com"}`))
		case "/rest/v1/users":
			registered <- r.Method
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(gotrue.Close)

	client, err := supabase.New(supabase.Config{URL: gotrue.URL, AnonKey: "anon-key", Timeout: 2 * time.Second})
	require.NoError(t, err)

	entries := services.NewEntryService(memory.NewSeeded(), nil)
	srv := NewServer(":0", Deps{
		Entries:            entries,
		Reports:            services.NewReportService(entries, time.Minute),
		Sessions:           client,
		Users:              client,
		RateLimitPerMinute: 1000,
	})
	t.Cleanup(func() { srv.limiter.Stop() })

	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-up", strings.NewReader(`{"email":"ada@example.com","password":"s3cret-pass"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, true, body["confirmation_required"])
	assert.NotContains(t, body, "access_token")
	assert.Empty(t, rr.Result().Cookies(), "no session cookie before confirmation")
	select {
	case method := <-registered:
		assert.Equal(t, http.MethodPost, method)
	default:
		t.Error("pending account should be added to the users registry")
	}
}

func TestSessionCookieAuthenticates(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodPost, "/api/auth/demo", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/income", nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListEntries(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.demoToken(t)

	rr := env.do(t, http.MethodGet, "/api/expenses?category=Housing", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, 450.0, entries[0].(map[string]any)["amount"])
	assert.Equal(t, false, body["empty"])
	assert.Equal(t, true, body["filtered"])

	rr = env.do(t, http.MethodGet, "/api/income?date=2023-04-15", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	entries = decode(t, rr)["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "Salary", entries[0].(map[string]any)["category"])

	rr = env.do(t, http.MethodGet, "/api/expenses?q=nothing-matches", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"entries":[]`)
	assert.Equal(t, true, decode(t, rr)["empty"])

	rr = env.do(t, http.MethodGet, "/api/expenses?date=15/04/2023", "", token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/transfers", "", token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateEntry(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.demoToken(t)

	// prime the report cache
	rr := env.do(t, http.MethodGet, "/api/expenses/totals", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), `"Food"`)

	rr = env.do(t, http.MethodPost, "/api/expenses", `{"amount":"12,50","category":"Food","reason":"Lunch","date":"2023-04-12","notes":"team"}`, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body := decode(t, rr)
	entry := body["entry"].(map[string]any)
	assert.Equal(t, 5.0, entry["id"])
	assert.Equal(t, 12.5, entry["amount"])
	assert.Equal(t, "Lunch", entry["counterpart"])
	form := body["form"].(map[string]any)
	assert.Equal(t, "Housing", form["category"])
	assert.Equal(t, "", form["amount"])
	assert.Equal(t, "success", body["notification"].(map[string]any)["type"])

	rr = env.do(t, http.MethodGet, "/api/expenses/totals", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"Food"`, "totals must reflect the new entry")

	rr = env.do(t, http.MethodPost, "/api/income", `{"amount":250,"category":"Gift","source":"Grandma"}`, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, 4.0, decode(t, rr)["entry"].(map[string]any)["id"])
}

func TestCreateEntryRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.demoToken(t)

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"negative amount", `{"amount":"-5","category":"Food","reason":"x"}`, "amount"},
		{"zero amount", `{"amount":"0","category":"Food","reason":"x"}`, "amount"},
		{"text amount", `{"amount":"abc","category":"Food","reason":"x"}`, "amount"},
		{"missing amount", `{"category":"Food","reason":"x"}`, "amount"},
		{"unknown category", `{"amount":"5","category":"Crypto","reason":"x"}`, "category"},
		{"income category on expense", `{"amount":"5","category":"Salary","reason":"x"}`, "category"},
		{"missing counterpart", `{"amount":"5","category":"Food"}`, "counterpart"},
		{"bad date", `{"amount":"5","category":"Food","reason":"x","date":"tomorrow"}`, "date"},
		{"long notes", `{"amount":"5","category":"Food","reason":"x","notes":"` + strings.Repeat("n", 501) + `"}`, "notes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/expenses", tc.body, token)
			require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
			details, ok := decode(t, rr)["details"].(map[string]any)
			require.True(t, ok)
			assert.Contains(t, details, tc.field)
		})
	}

	rr := env.do(t, http.MethodPost, "/api/expenses", `{"amount":`, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	_, expenses, err := env.entries.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, expenses, 4, "rejected input must not be stored")
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.demoToken(t)

	rr := env.do(t, http.MethodGet, "/api/income/categories", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "source", body["counterpart_label"])
	cats := body["categories"].([]any)
	require.Len(t, cats, len(core.IncomeCategories))
	assert.Equal(t, "Salary", cats[0])
}

func TestCalendar(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.demoToken(t)

	rr := env.do(t, http.MethodGet, "/api/calendar?month=2023-04&selected=2023-04-15", "", token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Len(t, body["days"], 30)
	selected := body["selected"].(map[string]any)
	assert.Len(t, selected["income"], 1)
	assert.Len(t, selected["expenses"], 1)

	rr = env.do(t, http.MethodGet, "/api/calendar?month=2023-04&selected=2023-04-15&action=next", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	state := decode(t, rr)["state"].(map[string]any)
	assert.Equal(t, "2023-05-01T00:00:00Z", state["current_month"])
	assert.Equal(t, "2023-04-15T00:00:00Z", state["selected_date"])

	rr = env.do(t, http.MethodGet, "/api/calendar?month=2023-04&action=select&day=2023-04-01", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	body = decode(t, rr)
	assert.Len(t, body["selected"].(map[string]any)["expenses"], 1)

	rr = env.do(t, http.MethodGet, "/api/calendar?action=select", "", token)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/calendar?action=jump", "", token)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/calendar?month=April", "", token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/calendar", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotNil(t, decode(t, rr)["selected"], "initial state selects today")
}

func TestAnalyticsAndDashboard(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.demoToken(t)

	for window, points := range map[string]int{"day": 1, "week": 7, "month": 30, "bogus": 7} {
		rr := env.do(t, http.MethodGet, "/api/analytics?window="+window, "", token)
		require.Equal(t, http.StatusOK, rr.Code)
		body := decode(t, rr)
		assert.Len(t, body["series"], points, window)
		assert.Contains(t, body, "summary")
	}

	rr := env.do(t, http.MethodGet, "/api/dashboard", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	// all-time balance of the seed data: 2725.00 - 595.00
	assert.Equal(t, 2130.0, body["total_balance"])
	assert.Len(t, body["week"], 7)
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.demoToken(t)

	rr := env.do(t, http.MethodGet, "/api/export.xlsx", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, export.ContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetExpenses)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestRateLimitOnPost(t *testing.T) {
	entries := services.NewEntryService(memory.NewSeeded(), nil)
	provider, err := local.New(local.NewMemoryCredentials(), nil, local.Config{Secret: []byte("secret"), BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	srv := NewServer(":0", Deps{
		Entries:            entries,
		Reports:            services.NewReportService(entries, time.Minute),
		Sessions:           provider,
		RateLimitPerMinute: 2,
	})
	t.Cleanup(func() { srv.limiter.Stop() })

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusUnprocessableEntity, post())
	assert.Equal(t, http.StatusUnprocessableEntity, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	// reads are not counted
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
