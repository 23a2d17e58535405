package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/prayer/internal/auth"
	"example.com/prayer/internal/domain"
	"example.com/prayer/internal/notify"
	"example.com/prayer/internal/persistence/memory"
)

var testAuth = auth.Config{Secret: "test-secret", Issuer: "prayer.test"}

type fixture struct {
	router http.Handler
	repo   *memory.Repository
	clock  *fakeClock
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memory.NewRepository()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	service := domain.NewService(repo, domain.WithClock(clock.Now))

	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)
	sessions, err := auth.NewAuthenticator(testAuth, hash, time.Hour)
	require.NoError(t, err)

	handler := NewHandler(service, sessions, notify.NewStreamHandler(notify.NewHub(), time.Hour))
	return &fixture{router: NewRouter(handler, testAuth), repo: repo, clock: clock}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateEntryAndReadTotals(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/entries", domain.NewEntry{ActivityTypeID: 2, Value: 1, DeviceHash: "dev-1"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created CreateEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, 2, created.ActivityTypeID)

	rec = f.do(t, http.MethodGet, "/v1/aggregates", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"items":[{"activity_type_id":2,"total":1}]}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/v1/stats", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"total_prayers":1,"total_minutes":0,"active_types":1,"catalog_size":9}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/v1/entries/recent?device_hash=dev-1&limit=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"items":[{"created_at":"2026-03-01T12:00:00Z"}]}`, rec.Body.String())
}

func TestCreateEntryCooldownReturns429(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/entries", domain.NewEntry{ActivityTypeID: 1, Value: 1, DeviceHash: "dev-1"}, "").Code)

	f.clock.now = f.clock.now.Add(2 * time.Second)
	rec := f.do(t, http.MethodPost, "/v1/entries", domain.NewEntry{ActivityTypeID: 2, Value: 1, DeviceHash: "dev-1"}, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "3", rec.Header().Get("Retry-After"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "cooldown_active", body.Type)
	require.Equal(t, 3, body.RetryAfterSeconds)

	f.clock.now = f.clock.now.Add(4 * time.Second)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/entries", domain.NewEntry{ActivityTypeID: 2, Value: 1, DeviceHash: "dev-1"}, "").Code)
}

func TestCreateEntryValidation(t *testing.T) {
	f := newFixture(t)

	cases := []domain.NewEntry{
		{ActivityTypeID: 42, Value: 1, DeviceHash: "dev"},
		{ActivityTypeID: 1, Value: 2, DeviceHash: "dev"},
		{ActivityTypeID: 3, Value: 0, DeviceHash: "dev"},
		{ActivityTypeID: 3, Value: 181, DeviceHash: "dev"},
		{ActivityTypeID: 1, Value: 1, DeviceHash: ""},
		{ActivityTypeID: 1, Value: 1, DeviceHash: domain.AdminDevice},
		{ActivityTypeID: 1, Value: 1, DeviceHash: "server-side"},
	}
	for _, c := range cases {
		rec := f.do(t, http.MethodPost, "/v1/entries", c, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, "%+v: %s", c, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/entries", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/entries", nil, "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestOversizedBodiesAreRejected(t *testing.T) {
	f := newFixture(t)
	oversized := `{"activity_type_id":1,"value":1,"device_hash":"` + strings.Repeat("x", maxBodyBytes) + `"}`

	for _, path := range []string{"/v1/entries", SessionPath} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(oversized))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, path)
		require.Contains(t, rec.Body.String(), "request_too_large")
	}
}

func TestRecentEntriesRequiresDevice(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/entries/recent", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivityTypesListsCatalog(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/activity-types", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []ActivityTypeView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 9)
	require.Equal(t, ActivityTypeView{ID: 3, Name: "Adoration", Unit: "minutes", DisplayOrder: 3, Glyph: "sun"}, items[2])
}

func TestAdminFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/admin/session", SessionRequest{Password: "wrong"}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/admin/adjustments", AdjustmentsRequest{Adjustments: map[int]int64{1: 5}}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/admin/session", SessionRequest{Password: "secret"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var session auth.AdminSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)

	rec = f.do(t, http.MethodPost, "/v1/admin/adjustments", AdjustmentsRequest{Adjustments: map[int]int64{1: 5, 3: -30, 4: 0}}, session.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.JSONEq(t, `{"applied":2}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/v1/admin/adjustments", AdjustmentsRequest{Adjustments: map[int]int64{99: 1}}, session.Token)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/admin/entries?limit=1", nil, session.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var page AdminEntriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	require.Equal(t, domain.AdminDevice, page.Items[0].DeviceHash)
	require.NotEmpty(t, page.NextCursor)

	rec = f.do(t, http.MethodGet, "/v1/admin/entries?limit=5&cursor="+page.NextCursor, nil, session.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var rest AdminEntriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rest))
	require.Len(t, rest.Items, 1)
	require.NotEqual(t, page.Items[0].ID, rest.Items[0].ID)
	require.Empty(t, rest.NextCursor)

	rec = f.do(t, http.MethodGet, "/v1/admin/entries?cursor=not-base64!", nil, session.Token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesRequireScope(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	token, err := auth.Issue(testAuth, auth.AdminSubject, []string{auth.ScopeAdminRead}, now, now.Add(time.Minute))
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/v1/admin/adjustments", AdjustmentsRequest{Adjustments: map[int]int64{1: 1}}, token)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/admin/entries", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
