// internal/syncer/syncer_test.go
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "github.com/Aditya130805/Crux/internal/errors"
	"github.com/Aditya130805/Crux/internal/model"
)

// MockStore is a testify mock for the Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetConnection(ctx context.Context, userID uuid.UUID) (model.Connection, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.Connection), args.Error(1)
}

func (m *MockStore) UpsertRepository(ctx context.Context, repo model.Repository) error {
	args := m.Called(ctx, repo)
	return args.Error(0)
}

func (m *MockStore) InsertOrganization(ctx context.Context, org model.Organization) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *MockStore) InsertStarredRepo(ctx context.Context, star model.StarredRepo) error {
	args := m.Called(ctx, star)
	return args.Error(0)
}

func (m *MockStore) UpsertSkill(ctx context.Context, userID uuid.UUID, skillName, skillType string) error {
	args := m.Called(ctx, userID, skillName, skillType)
	return args.Error(0)
}

func (m *MockStore) UpsertUserProfile(ctx context.Context, profile model.UserProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockStore) UpsertUserMetrics(ctx context.Context, userID uuid.UUID, repoID int64, counters model.ContributionCounters, metricDate time.Time) error {
	args := m.Called(ctx, userID, repoID, counters, metricDate)
	return args.Error(0)
}

func (m *MockStore) UpsertMonthlyMetrics(ctx context.Context, userID uuid.UUID, repoID int64, key model.MonthKey, counters model.ContributionCounters) error {
	args := m.Called(ctx, userID, repoID, key, counters)
	return args.Error(0)
}

// fakeGitHub is a canned API implementation. The metrics endpoints return
// empty pages so contribution counters come out zero unless a test overrides
// them.
type fakeGitHub struct {
	repos    []*github.Repository
	reposErr error
	orgs     []*github.Organization
	starred  []*github.StarredRepository
	events   []*github.Event
	user     *github.User
}

func (f *fakeGitHub) UserRepositories(context.Context) ([]*github.Repository, error) {
	return f.repos, f.reposErr
}

func (f *fakeGitHub) Organizations(context.Context) ([]*github.Organization, error) {
	return f.orgs, nil
}

func (f *fakeGitHub) StarredRepositories(context.Context) ([]*github.StarredRepository, error) {
	return f.starred, nil
}

func (f *fakeGitHub) RecentEvents(context.Context, string) ([]*github.Event, error) {
	return f.events, nil
}

func (f *fakeGitHub) AuthenticatedUser(context.Context) (*github.User, error) {
	if f.user != nil {
		return f.user, nil
	}
	return &github.User{Login: github.String("testuser")}, nil
}

func (f *fakeGitHub) RepoCommits(context.Context, string, string, string, time.Time, int) ([]*github.RepositoryCommit, bool, error) {
	return nil, false, nil
}

func (f *fakeGitHub) CommitStats(context.Context, string, string, string) (int, int, error) {
	return 0, 0, nil
}

func (f *fakeGitHub) PullRequests(context.Context, string, string, int) ([]*github.PullRequest, bool, error) {
	return nil, false, nil
}

func (f *fakeGitHub) IssuesByCreator(context.Context, string, string, string, time.Time, int) ([]*github.Issue, bool, error) {
	return nil, false, nil
}

func (f *fakeGitHub) ReviewSearchCount(context.Context, string, string, string) (int, error) {
	return 0, nil
}

func (f *fakeGitHub) ReviewedPullRequests(context.Context, string, string, string) ([]*github.Issue, error) {
	return nil, nil
}

func (f *fakeGitHub) PullRequestReviews(context.Context, string, string, int) ([]*github.PullRequestReview, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestSyncer(store Store, gh API) *Syncer {
	factory := func(token string) API { return gh }
	return NewSyncer(store, factory, testLogger(), nil, 365, 12)
}

func ownedRepo(id int64, name, language string, topics ...string) *github.Repository {
	return &github.Repository{
		ID:       github.Int64(id),
		Name:     github.String(name),
		FullName: github.String("testuser/" + name),
		Owner:    &github.User{Login: github.String("testuser")},
		Language: github.String(language),
		Topics:   topics,
	}
}

func testConnection(userID uuid.UUID) model.Connection {
	return model.Connection{UserID: userID, GitHubUsername: "testuser", AccessToken: "token"}
}

func TestFilterRepositories(t *testing.T) {
	repos := []*github.Repository{
		// Owned, kept.
		{Owner: &github.User{Login: github.String("testuser")}, Name: github.String("own")},
		// Collaborator with push, kept.
		{Owner: &github.User{Login: github.String("other")}, Name: github.String("push"),
			Permissions: map[string]bool{"push": true}},
		// Admin without push, kept.
		{Owner: &github.User{Login: github.String("other")}, Name: github.String("admin"),
			Permissions: map[string]bool{"admin": true}},
		// Read-only collaborator, dropped.
		{Owner: &github.User{Login: github.String("other")}, Name: github.String("readonly"),
			Permissions: map[string]bool{"pull": true}},
		// Owned fork below the star floor, dropped.
		{Owner: &github.User{Login: github.String("testuser")}, Name: github.String("smallfork"),
			Fork: github.Bool(true), StargazersCount: github.Int(9)},
		// Owned fork at the star floor, kept.
		{Owner: &github.User{Login: github.String("testuser")}, Name: github.String("bigfork"),
			Fork: github.Bool(true), StargazersCount: github.Int(10)},
	}

	retained := filterRepositories(repos, "testuser")

	names := make([]string, 0, len(retained))
	for _, repo := range retained {
		names = append(names, repo.GetName())
	}
	assert.Equal(t, []string{"own", "push", "admin", "bigfork"}, names)
}

func TestSyncFailsWhenNotConnected(t *testing.T) {
	store := new(MockStore)
	userID := uuid.New()
	store.On("GetConnection", mock.Anything, userID).
		Return(model.Connection{}, custom_errors.ErrNotConnected)

	s := newTestSyncer(store, &fakeGitHub{})
	_, err := s.Sync(context.Background(), userID)

	assert.ErrorIs(t, err, custom_errors.ErrNotConnected)
	store.AssertExpectations(t)
}

func TestSyncFailsWhenRepositoryListFetchFails(t *testing.T) {
	store := new(MockStore)
	userID := uuid.New()
	store.On("GetConnection", mock.Anything, userID).Return(testConnection(userID), nil)

	s := newTestSyncer(store, &fakeGitHub{reposErr: errors.New("api down")})
	_, err := s.Sync(context.Background(), userID)

	var fetchErr *custom_errors.ErrRepoListFetch
	require.ErrorAs(t, err, &fetchErr)
}

func TestSyncImportsRepositoriesSkillsAndMetrics(t *testing.T) {
	store := new(MockStore)
	userID := uuid.New()
	store.On("GetConnection", mock.Anything, userID).Return(testConnection(userID), nil)
	store.On("UpsertRepository", mock.Anything, mock.Anything).Return(nil)
	store.On("UpsertSkill", mock.Anything, userID, mock.Anything, mock.Anything).Return(nil)
	store.On("UpsertUserProfile", mock.Anything, mock.Anything).Return(nil)
	store.On("UpsertUserMetrics", mock.Anything, userID, int64(101), model.ContributionCounters{}, mock.Anything).Return(nil)
	store.On("UpsertMonthlyMetrics", mock.Anything, userID, int64(101), mock.Anything, model.ContributionCounters{}).Return(nil)

	gh := &fakeGitHub{
		repos: []*github.Repository{ownedRepo(101, "demo", "Go", "cli")},
	}
	s := newTestSyncer(store, gh)

	summary, err := s.Sync(context.Background(), userID)

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.ProjectsAdded)
	assert.Equal(t, []string{"Go", "cli"}, summary.SkillsInferred)
	assert.Contains(t, summary.Message, "1 repositories")

	store.AssertNumberOfCalls(t, "UpsertRepository", 1)
	store.AssertNumberOfCalls(t, "UpsertSkill", 2)
	store.AssertNumberOfCalls(t, "UpsertUserMetrics", 1)
	// monthsBack=12 produces 13 calendar buckets including the current month.
	store.AssertNumberOfCalls(t, "UpsertMonthlyMetrics", 13)
}

func TestSyncCapsTopicSkillsAtFive(t *testing.T) {
	store := new(MockStore)
	userID := uuid.New()
	store.On("GetConnection", mock.Anything, userID).Return(testConnection(userID), nil)
	store.On("UpsertRepository", mock.Anything, mock.Anything).Return(nil)
	store.On("UpsertSkill", mock.Anything, userID, mock.Anything, "technology").Return(nil)
	store.On("UpsertUserProfile", mock.Anything, mock.Anything).Return(nil)
	store.On("UpsertUserMetrics", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("UpsertMonthlyMetrics", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	repo := ownedRepo(102, "topics", "", "a", "b", "c", "d", "e", "f", "g")
	repo.Language = nil
	gh := &fakeGitHub{repos: []*github.Repository{repo}}
	s := newTestSyncer(store, gh)

	summary, err := s.Sync(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, summary.SkillsInferred)
	store.AssertNumberOfCalls(t, "UpsertSkill", 5)
}

func TestSyncStoresOnlyPopularStarredRepos(t *testing.T) {
	store := new(MockStore)
	userID := uuid.New()
	store.On("GetConnection", mock.Anything, userID).Return(testConnection(userID), nil)
	store.On("UpsertUserProfile", mock.Anything, mock.Anything).Return(nil)
	store.On("InsertStarredRepo", mock.Anything, mock.MatchedBy(func(star model.StarredRepo) bool {
		return star.Stars == 1001
	})).Return(nil)

	gh := &fakeGitHub{
		starred: []*github.StarredRepository{
			{Repository: &github.Repository{ID: github.Int64(1), FullName: github.String("a/borderline"),
				StargazersCount: github.Int(1000)}},
			{Repository: &github.Repository{ID: github.Int64(2), FullName: github.String("a/popular"),
				StargazersCount: github.Int(1001)}},
		},
	}
	s := newTestSyncer(store, gh)

	_, err := s.Sync(context.Background(), userID)

	require.NoError(t, err)
	store.AssertNumberOfCalls(t, "InsertStarredRepo", 1)
}

func TestSyncSucceedsWhenMetricsStorageFails(t *testing.T) {
	store := new(MockStore)
	userID := uuid.New()
	store.On("GetConnection", mock.Anything, userID).Return(testConnection(userID), nil)
	store.On("UpsertRepository", mock.Anything, mock.Anything).Return(nil)
	store.On("UpsertSkill", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("UpsertUserProfile", mock.Anything, mock.Anything).Return(nil)
	store.On("UpsertUserMetrics", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("db write failed"))
	store.On("UpsertMonthlyMetrics", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("db write failed"))

	gh := &fakeGitHub{repos: []*github.Repository{ownedRepo(103, "demo", "Go")}}
	s := newTestSyncer(store, gh)

	summary, err := s.Sync(context.Background(), userID)

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.ProjectsAdded)
}

func TestClassifyEvents(t *testing.T) {
	push, err := json.Marshal(&github.PushEvent{
		Commits: []*github.HeadCommit{{SHA: github.String("a")}, {SHA: github.String("b")}},
	})
	require.NoError(t, err)
	prEvent, err := json.Marshal(&github.PullRequestEvent{Action: github.String("opened")})
	require.NoError(t, err)
	watch, err := json.Marshal(&github.WatchEvent{})
	require.NoError(t, err)

	events := []*github.Event{
		{Type: github.String("PushEvent"), RawPayload: (*json.RawMessage)(&push)},
		{Type: github.String("PullRequestEvent"), RawPayload: (*json.RawMessage)(&prEvent)},
		{Type: github.String("WatchEvent"), RawPayload: (*json.RawMessage)(&watch)},
	}

	totals := classifyEvents(events, testLogger())

	assert.Equal(t, 2, totals.Commits)
	assert.Equal(t, 1, totals.PullRequests)
	assert.Equal(t, 0, totals.Issues)
}
