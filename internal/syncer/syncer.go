// internal/syncer/syncer.go
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/google/uuid"

	custom_errors "github.com/Aditya130805/Crux/internal/errors"
	"github.com/Aditya130805/Crux/internal/metrics"
	"github.com/Aditya130805/Crux/internal/model"
	"github.com/Aditya130805/Crux/internal/telemetry"
)

const (
	// Forks below this star count are noise and are not imported.
	minForkStars = 10
	// Starred repos are stored only above this popularity threshold.
	minStarredStars = 1000
	// At most this many topic tags per repository become skills.
	maxTopicSkills = 5
)

// API is the GitHub surface the orchestrator drives. It extends the metrics
// fetchers' view with the account-level endpoints.
type API interface {
	metrics.API
	UserRepositories(ctx context.Context) ([]*github.Repository, error)
	Organizations(ctx context.Context) ([]*github.Organization, error)
	StarredRepositories(ctx context.Context) ([]*github.StarredRepository, error)
	RecentEvents(ctx context.Context, username string) ([]*github.Event, error)
	AuthenticatedUser(ctx context.Context) (*github.User, error)
}

// ClientFactory builds an API client authenticated with the given token.
type ClientFactory func(token string) API

// Store is the persistence surface the orchestrator writes through.
type Store interface {
	GetConnection(ctx context.Context, userID uuid.UUID) (model.Connection, error)
	UpsertRepository(ctx context.Context, repo model.Repository) error
	InsertOrganization(ctx context.Context, org model.Organization) error
	InsertStarredRepo(ctx context.Context, star model.StarredRepo) error
	UpsertSkill(ctx context.Context, userID uuid.UUID, skillName, skillType string) error
	UpsertUserProfile(ctx context.Context, profile model.UserProfile) error
	UpsertUserMetrics(ctx context.Context, userID uuid.UUID, repoID int64, counters model.ContributionCounters, metricDate time.Time) error
	UpsertMonthlyMetrics(ctx context.Context, userID uuid.UUID, repoID int64, key model.MonthKey, counters model.ContributionCounters) error
}

// Syncer orchestrates one end-to-end GitHub import for a user. The pipeline
// is sequential: each remote call and each storage write completes before
// the next begins.
type Syncer struct {
	store          Store
	newClient      ClientFactory
	logger         *slog.Logger
	metrics        *telemetry.Metrics
	snapshotWindow time.Duration
	monthsBack     int
	now            func() time.Time
}

// NewSyncer creates a Syncer. snapshotWindowDays bounds the cumulative
// snapshot cutoff; monthsBack sets the monthly aggregation horizon.
func NewSyncer(store Store, newClient ClientFactory, logger *slog.Logger, tm *telemetry.Metrics, snapshotWindowDays, monthsBack int) *Syncer {
	return &Syncer{
		store:          store,
		newClient:      newClient,
		logger:         logger,
		metrics:        tm,
		snapshotWindow: time.Duration(snapshotWindowDays) * 24 * time.Hour,
		monthsBack:     monthsBack,
		now:            time.Now,
	}
}

// Sync runs the full import for one user. It fails only when the user has
// no stored credential or the initial repository-list fetch fails; every
// later degradation is logged and the summary still reports success.
func (s *Syncer) Sync(ctx context.Context, userID uuid.UUID) (model.SyncSummary, error) {
	logger := s.logger.With("user_id", userID)

	conn, err := s.store.GetConnection(ctx, userID)
	if err != nil {
		s.observeRun("rejected")
		return model.SyncSummary{}, err
	}

	client := s.newClient(conn.AccessToken)
	logger.Info("Starting GitHub sync", "github_username", conn.GitHubUsername)

	repos, err := client.UserRepositories(ctx)
	if err != nil {
		s.observeRun("failed")
		return model.SyncSummary{}, &custom_errors.ErrRepoListFetch{Err: err}
	}

	retained := filterRepositories(repos, conn.GitHubUsername)
	logger.Info("Filtered repository list", "fetched", len(repos), "retained", len(retained))

	skills := make(map[string]struct{})
	for _, repo := range retained {
		if err := s.store.UpsertRepository(ctx, toModelRepository(userID, repo)); err != nil {
			logger.Error("Failed to store repository", "repo", repo.GetFullName(), "error", err)
		}
		s.storeSkills(ctx, userID, repo, skills, logger)
	}

	orgCount := s.syncOrganizations(ctx, client, userID, logger)
	s.syncEvents(ctx, client, conn.GitHubUsername, logger)
	s.syncStarred(ctx, client, userID, logger)
	s.syncProfile(ctx, client, userID, conn.GitHubUsername, logger)

	// Best-effort boundary: the expensive metrics stage must not take down
	// the core repository/skill/org import with it.
	s.syncContributionMetrics(ctx, client, userID, conn.GitHubUsername, retained, logger)

	skillNames := make([]string, 0, len(skills))
	for name := range skills {
		skillNames = append(skillNames, name)
	}
	sort.Strings(skillNames)

	s.observeRun("ok")
	if s.metrics != nil {
		s.metrics.AddReposSynced(len(retained))
	}

	return model.SyncSummary{
		Success:        true,
		ProjectsAdded:  len(retained),
		SkillsInferred: skillNames,
		Message: fmt.Sprintf("Successfully imported %d repositories, %d organizations, and user-specific contribution metrics",
			len(retained), orgCount),
	}, nil
}

func (s *Syncer) observeRun(result string) {
	if s.metrics != nil {
		s.metrics.ObserveSyncRun(result)
	}
}

// filterRepositories keeps repos the user owns or can push/administer, then
// drops forks without a notable star count.
func filterRepositories(repos []*github.Repository, username string) []*github.Repository {
	retained := make([]*github.Repository, 0, len(repos))
	for _, repo := range repos {
		permissions := repo.GetPermissions()
		if repo.GetOwner().GetLogin() != username && !permissions["push"] && !permissions["admin"] {
			continue
		}
		if repo.GetFork() && repo.GetStargazersCount() < minForkStars {
			continue
		}
		retained = append(retained, repo)
	}
	return retained
}

// storeSkills infers skills from the repo's primary language and up to five
// topic tags.
func (s *Syncer) storeSkills(ctx context.Context, userID uuid.UUID, repo *github.Repository, skills map[string]struct{}, logger *slog.Logger) {
	if language := repo.GetLanguage(); language != "" {
		skills[language] = struct{}{}
		if err := s.store.UpsertSkill(ctx, userID, language, "language"); err != nil {
			logger.Error("Failed to store skill", "skill", language, "error", err)
		}
	}

	topics := repo.Topics
	if len(topics) > maxTopicSkills {
		topics = topics[:maxTopicSkills]
	}
	for _, topic := range topics {
		skills[topic] = struct{}{}
		if err := s.store.UpsertSkill(ctx, userID, topic, "technology"); err != nil {
			logger.Error("Failed to store skill", "skill", topic, "error", err)
		}
	}
}

func (s *Syncer) syncOrganizations(ctx context.Context, client API, userID uuid.UUID, logger *slog.Logger) int {
	orgs, err := client.Organizations(ctx)
	if err != nil {
		logger.Warn("Could not fetch organizations", "error", err)
		return 0
	}
	for _, org := range orgs {
		record := model.Organization{
			UserID:      userID,
			OrgID:       org.GetID(),
			Login:       org.GetLogin(),
			Name:        org.GetName(),
			Description: org.Description,
			URL:         org.GetHTMLURL(),
		}
		if record.Name == "" {
			record.Name = record.Login
		}
		if err := s.store.InsertOrganization(ctx, record); err != nil {
			logger.Error("Failed to store organization", "org", record.Login, "error", err)
		}
	}
	return len(orgs)
}

// syncEvents classifies the recent activity feed into contribution totals.
// Nothing persists these; they are logged for visibility only.
func (s *Syncer) syncEvents(ctx context.Context, client API, username string, logger *slog.Logger) {
	events, err := client.RecentEvents(ctx, username)
	if err != nil {
		logger.Warn("Could not fetch recent events", "error", err)
		return
	}

	totals := classifyEvents(events, logger)
	logger.Info("Recent event-derived contribution totals",
		"commits", totals.Commits,
		"pull_requests", totals.PullRequests,
		"issues", totals.Issues,
		"reviews", totals.Reviews)
}

// classifyEvents parses each event's typed payload, skipping event kinds and
// payload shapes it does not recognize.
func classifyEvents(events []*github.Event, logger *slog.Logger) model.EventTotals {
	var totals model.EventTotals
	for _, event := range events {
		payload, err := event.ParsePayload()
		if err != nil {
			logger.Debug("Skipping unparseable event", "type", event.GetType(), "error", err)
			continue
		}
		switch p := payload.(type) {
		case *github.PushEvent:
			totals.Commits += len(p.Commits)
		case *github.PullRequestEvent:
			totals.PullRequests++
		case *github.IssuesEvent:
			totals.Issues++
		case *github.PullRequestReviewEvent:
			totals.Reviews++
		}
	}
	return totals
}

func (s *Syncer) syncStarred(ctx context.Context, client API, userID uuid.UUID, logger *slog.Logger) {
	starred, err := client.StarredRepositories(ctx)
	if err != nil {
		logger.Warn("Could not fetch starred repositories", "error", err)
		return
	}
	for _, star := range starred {
		repo := star.GetRepository()
		if repo.GetStargazersCount() <= minStarredStars {
			continue
		}
		record := model.StarredRepo{
			UserID:      userID,
			RepoID:      repo.GetID(),
			Name:        repo.GetName(),
			FullName:    repo.GetFullName(),
			Description: repo.Description,
			URL:         repo.GetHTMLURL(),
			Stars:       repo.GetStargazersCount(),
		}
		if err := s.store.InsertStarredRepo(ctx, record); err != nil {
			logger.Error("Failed to store starred repo", "repo", record.FullName, "error", err)
		}
	}
}

func (s *Syncer) syncProfile(ctx context.Context, client API, userID uuid.UUID, username string, logger *slog.Logger) {
	user, err := client.AuthenticatedUser(ctx)
	if err != nil {
		logger.Warn("Could not fetch GitHub profile", "error", err)
		return
	}
	profile := model.UserProfile{
		UserID:         userID,
		GitHubUsername: username,
		Followers:      user.GetFollowers(),
		Following:      user.GetFollowing(),
		PublicRepos:    user.GetPublicRepos(),
		PublicGists:    user.GetPublicGists(),
		Bio:            user.Bio,
		Company:        user.Company,
		Location:       user.Location,
		Blog:           user.Blog,
	}
	if user.CreatedAt != nil {
		joined := user.GetCreatedAt().Time
		profile.GitHubJoinedAt = &joined
	}
	if err := s.store.UpsertUserProfile(ctx, profile); err != nil {
		logger.Error("Failed to store user profile", "error", err)
	}
}

// syncContributionMetrics runs the snapshot and monthly fetchers for every
// retained repository and persists their outputs. Every failure inside this
// stage is logged and swallowed.
func (s *Syncer) syncContributionMetrics(ctx context.Context, client API, userID uuid.UUID, username string, repos []*github.Repository, logger *slog.Logger) {
	snapshot := metrics.NewSnapshotFetcher(client, username, logger, s.metrics)
	monthly := metrics.NewMonthlyFetcher(client, username, logger, s.metrics)

	now := s.now().UTC()
	since := now.Add(-s.snapshotWindow)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for _, repo := range repos {
		owner, name := repo.GetOwner().GetLogin(), repo.GetName()
		logger.Info("Fetching contribution metrics", "repo", repo.GetFullName())

		counters, report := snapshot.FetchRepoSnapshot(ctx, owner, name, since)
		if report.Degraded() {
			logger.Warn("Snapshot fetch degraded", "repo", repo.GetFullName(), "classes", len(report.Outcomes))
		}
		if err := s.store.UpsertUserMetrics(ctx, userID, repo.GetID(), counters, today); err != nil {
			logger.Error("Failed to store snapshot metrics", "repo", repo.GetFullName(), "error", err)
		}

		buckets, report := monthly.FetchMonthly(ctx, owner, name, s.monthsBack)
		if report.Degraded() {
			logger.Warn("Monthly fetch degraded", "repo", repo.GetFullName(), "classes", len(report.Outcomes))
		}
		for key, monthCounters := range buckets {
			if err := s.store.UpsertMonthlyMetrics(ctx, userID, repo.GetID(), key, *monthCounters); err != nil {
				logger.Error("Failed to store monthly metrics",
					"repo", repo.GetFullName(), "year", key.Year, "month", key.Month, "error", err)
			}
		}
	}
}

// toModelRepository translates a github.Repository to the stored record.
func toModelRepository(userID uuid.UUID, repo *github.Repository) model.Repository {
	record := model.Repository{
		UserID:        userID,
		RepoID:        repo.GetID(),
		Name:          repo.GetName(),
		FullName:      repo.GetFullName(),
		Description:   repo.Description,
		URL:           repo.GetHTMLURL(),
		Homepage:      repo.Homepage,
		Language:      repo.Language,
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
		Watchers:      repo.GetWatchersCount(),
		OpenIssues:    repo.GetOpenIssuesCount(),
		Size:          repo.GetSize(),
		IsPrivate:     repo.GetPrivate(),
		IsFork:        repo.GetFork(),
		DefaultBranch: repo.GetDefaultBranch(),
	}
	if repo.License != nil {
		license := repo.GetLicense().GetName()
		record.License = &license
	}
	if repo.CreatedAt != nil {
		created := repo.GetCreatedAt().Time
		record.CreatedAt = &created
	}
	if repo.UpdatedAt != nil {
		updated := repo.GetUpdatedAt().Time
		record.UpdatedAt = &updated
	}
	if repo.PushedAt != nil {
		pushed := repo.GetPushedAt().Time
		record.PushedAt = &pushed
	}
	return record
}
