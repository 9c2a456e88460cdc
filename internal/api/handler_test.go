// internal/api/handler_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "github.com/Aditya130805/Crux/internal/errors"
	"github.com/Aditya130805/Crux/internal/model"
	"github.com/Aditya130805/Crux/internal/storage"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveConnection(ctx context.Context, conn model.Connection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockStore) GetConnection(ctx context.Context, userID uuid.UUID) (model.Connection, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.Connection), args.Error(1)
}

func (m *MockStore) DeleteConnection(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockStore) GetUserRepositories(ctx context.Context, userID uuid.UUID, ownerFilter string) ([]model.Repository, error) {
	args := m.Called(ctx, userID, ownerFilter)
	return args.Get(0).([]model.Repository), args.Error(1)
}

func (m *MockStore) GetMonthlyMetrics(ctx context.Context, userID uuid.UUID, filter storage.MetricsFilter) ([]model.MonthlyRepoMetrics, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).([]model.MonthlyRepoMetrics), args.Error(1)
}

func (m *MockStore) GetAggregatedMonthlyMetrics(ctx context.Context, userID uuid.UUID, filter storage.MetricsFilter) ([]model.MonthlyTotals, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).([]model.MonthlyTotals), args.Error(1)
}

func (m *MockStore) DeleteUserData(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type stubSyncer struct {
	summary model.SyncSummary
	err     error
}

func (s *stubSyncer) Sync(ctx context.Context, userID uuid.UUID) (model.SyncSummary, error) {
	return s.summary, s.err
}

func newTestRouter(store Store, syncRunner SyncRunner) http.Handler {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewRouter(store, syncRunner, nil, nil, logger)
}

func doRequest(t *testing.T, router http.Handler, method, target string, userID *uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != nil {
		req.Header.Set("X-User-ID", userID.String())
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(new(MockStore), &stubSyncer{})

	rec := doRequest(t, router, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutesRejectMissingPrincipal(t *testing.T) {
	router := newTestRouter(new(MockStore), &stubSyncer{})

	rec := doRequest(t, router, http.MethodPost, "/v1/github/sync", nil, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSaveConnectionValidatesBody(t *testing.T) {
	router := newTestRouter(new(MockStore), &stubSyncer{})
	userID := uuid.New()

	rec := doRequest(t, router, http.MethodPut, "/v1/github/connection", &userID,
		`{"github_username":"","access_token":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveConnectionStoresCredential(t *testing.T) {
	store := new(MockStore)
	userID := uuid.New()
	store.On("SaveConnection", mock.Anything, mock.MatchedBy(func(conn model.Connection) bool {
		return conn.UserID == userID && conn.GitHubUsername == "testuser" && conn.AccessToken == "gho_abc"
	})).Return(nil)
	router := newTestRouter(store, &stubSyncer{})

	rec := doRequest(t, router, http.MethodPut, "/v1/github/connection", &userID,
		`{"github_username":"testuser","access_token":"gho_abc"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	store.AssertExpectations(t)
}

func TestSyncReportsNotConnected(t *testing.T) {
	router := newTestRouter(new(MockStore), &stubSyncer{err: custom_errors.ErrNotConnected})
	userID := uuid.New()

	rec := doRequest(t, router, http.MethodPost, "/v1/github/sync", &userID, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not connected")
}

func TestSyncReportsRepositoryFetchFailure(t *testing.T) {
	syncErr := &custom_errors.ErrRepoListFetch{Err: errors.New("api down")}
	router := newTestRouter(new(MockStore), &stubSyncer{err: syncErr})
	userID := uuid.New()

	rec := doRequest(t, router, http.MethodPost, "/v1/github/sync", &userID, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to fetch repositories")
}

func TestSyncReturnsSummary(t *testing.T) {
	summary := model.SyncSummary{Success: true, ProjectsAdded: 3, SkillsInferred: []string{"Go"}}
	router := newTestRouter(new(MockStore), &stubSyncer{summary: summary})
	userID := uuid.New()

	rec := doRequest(t, router, http.MethodPost, "/v1/github/sync", &userID, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.SyncSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, summary, got)
}

func TestGetRepositoriesPassesOwnerFilter(t *testing.T) {
	store := new(MockStore)
	userID := uuid.New()
	store.On("GetUserRepositories", mock.Anything, userID, "testuser").
		Return([]model.Repository{{RepoID: 101, Name: "demo"}}, nil)
	router := newTestRouter(store, &stubSyncer{})

	rec := doRequest(t, router, http.MethodGet, "/v1/github/repositories?owner=testuser", &userID, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"demo"`)
	store.AssertExpectations(t)
}

func TestMonthlyAnalyticsRejectsMalformedRepoIDs(t *testing.T) {
	router := newTestRouter(new(MockStore), &stubSyncer{})
	userID := uuid.New()

	rec := doRequest(t, router, http.MethodGet, "/v1/github/analytics/monthly?repo_ids=1,abc", &userID, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid repo_ids format")
}

func TestMonthlyAnalyticsAppliesFilter(t *testing.T) {
	store := new(MockStore)
	userID := uuid.New()
	expected := storage.MetricsFilter{RepoIDs: []int64{1, 2}, StartYear: 2026, StartMonth: 3}
	store.On("GetMonthlyMetrics", mock.Anything, userID, expected).
		Return([]model.MonthlyRepoMetrics{}, nil)
	router := newTestRouter(store, &stubSyncer{})

	rec := doRequest(t, router, http.MethodGet,
		"/v1/github/analytics/monthly?repo_ids=1,2&start_year=2026&start_month=3", &userID, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	store.AssertExpectations(t)
}

func TestMonthlyAnalyticsAggregates(t *testing.T) {
	store := new(MockStore)
	userID := uuid.New()
	totals := []model.MonthlyTotals{{MonthKey: model.MonthKey{Year: 2026, Month: 8}, TotalCommits: 8, ActiveRepos: 2}}
	store.On("GetAggregatedMonthlyMetrics", mock.Anything, userID, mock.Anything).Return(totals, nil)
	router := newTestRouter(store, &stubSyncer{})

	rec := doRequest(t, router, http.MethodGet, "/v1/github/analytics/monthly?aggregate=true", &userID, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_commits":8`)
	assert.Contains(t, rec.Body.String(), `"active_repos":2`)
}

func TestDisconnectWhenNotConnected(t *testing.T) {
	store := new(MockStore)
	userID := uuid.New()
	store.On("GetConnection", mock.Anything, userID).
		Return(model.Connection{}, custom_errors.ErrNotConnected)
	router := newTestRouter(store, &stubSyncer{})

	rec := doRequest(t, router, http.MethodPost, "/v1/github/disconnect", &userID, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteDataSucceedsOnPartialFailure(t *testing.T) {
	store := new(MockStore)
	userID := uuid.New()
	store.On("DeleteUserData", mock.Anything, userID).Return(errors.New("skills table locked"))
	router := newTestRouter(store, &stubSyncer{})

	rec := doRequest(t, router, http.MethodDelete, "/v1/github/data", &userID, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}
