// internal/storage/storage.go
package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	custom_errors "github.com/Aditya130805/Crux/internal/errors"
	"github.com/Aditya130805/Crux/internal/model"
	"github.com/Aditya130805/Crux/internal/telemetry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Storage is the persistence layer for all GitHub-derived data. Every row it
// touches is scoped by user_id, and every write is an idempotent upsert or
// insert-or-ignore keyed on the record's natural identity.
type Storage struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// New creates a Storage and applies the embedded schema migrations. The
// migrations are create-if-not-exists, so construction is safe to repeat.
func New(pool *pgxpool.Pool, dbURL string, logger *slog.Logger, metrics *telemetry.Metrics) (*Storage, error) {
	if err := runMigrations(dbURL); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	logger.Info("GitHub data tables initialized")
	return &Storage{pool: pool, logger: logger, metrics: metrics}, nil
}

func runMigrations(dbURL string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// fail records the error for telemetry and wraps it with the operation name.
func (s *Storage) fail(operation string, err error) error {
	if s.metrics != nil {
		s.metrics.ObserveStoreError(operation)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// SaveConnection stores or replaces the user's GitHub credential.
func (s *Storage) SaveConnection(ctx context.Context, conn model.Connection) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO github_connections (user_id, github_username, access_token, connected_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET
			github_username = EXCLUDED.github_username,
			access_token = EXCLUDED.access_token,
			connected_at = NOW()`,
		conn.UserID, conn.GitHubUsername, conn.AccessToken)
	if err != nil {
		return s.fail("save_connection", err)
	}
	return nil
}

// GetConnection returns the stored credential, or ErrNotConnected if the
// user has none.
func (s *Storage) GetConnection(ctx context.Context, userID uuid.UUID) (model.Connection, error) {
	conn := model.Connection{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT github_username, access_token, connected_at
		FROM github_connections
		WHERE user_id = $1`,
		userID).Scan(&conn.GitHubUsername, &conn.AccessToken, &conn.ConnectedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Connection{}, custom_errors.ErrNotConnected
	}
	if err != nil {
		return model.Connection{}, s.fail("get_connection", err)
	}
	return conn, nil
}

// DeleteConnection removes the stored credential.
func (s *Storage) DeleteConnection(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM github_connections WHERE user_id = $1`, userID)
	if err != nil {
		return s.fail("delete_connection", err)
	}
	return nil
}

// UpsertRepository stores comprehensive repository data. Non-identity fields
// are last-write-wins on re-sync.
func (s *Storage) UpsertRepository(ctx context.Context, repo model.Repository) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO github_repositories (
			user_id, repo_id, repo_name, repo_full_name, description, url, homepage,
			language, stars, forks, watchers, open_issues, size, is_private, is_fork,
			default_branch, license, created_at, updated_at, pushed_at, last_synced_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, NOW())
		ON CONFLICT (user_id, repo_id)
		DO UPDATE SET
			repo_name = EXCLUDED.repo_name,
			repo_full_name = EXCLUDED.repo_full_name,
			description = EXCLUDED.description,
			language = EXCLUDED.language,
			stars = EXCLUDED.stars,
			forks = EXCLUDED.forks,
			watchers = EXCLUDED.watchers,
			open_issues = EXCLUDED.open_issues,
			size = EXCLUDED.size,
			updated_at = EXCLUDED.updated_at,
			pushed_at = EXCLUDED.pushed_at,
			last_synced_at = NOW()`,
		repo.UserID, repo.RepoID, repo.Name, repo.FullName, repo.Description, repo.URL,
		repo.Homepage, repo.Language, repo.Stars, repo.Forks, repo.Watchers,
		repo.OpenIssues, repo.Size, repo.IsPrivate, repo.IsFork, repo.DefaultBranch,
		repo.License, repo.CreatedAt, repo.UpdatedAt, repo.PushedAt)
	if err != nil {
		return s.fail("store_repository", err)
	}
	return nil
}

// InsertOrganization stores an organization membership once; membership
// facts are not expected to change, so conflicts are ignored.
func (s *Storage) InsertOrganization(ctx context.Context, org model.Organization) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO github_organizations (user_id, org_id, org_login, org_name, description, url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, org_id) DO NOTHING`,
		org.UserID, org.OrgID, org.Login, org.Name, org.Description, org.URL)
	if err != nil {
		return s.fail("store_organization", err)
	}
	return nil
}

// InsertStarredRepo stores a starred repository once.
func (s *Storage) InsertStarredRepo(ctx context.Context, star model.StarredRepo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO github_starred_repos (user_id, repo_id, repo_name, repo_full_name, description, url, stars)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, repo_id) DO NOTHING`,
		star.UserID, star.RepoID, star.Name, star.FullName, star.Description, star.URL, star.Stars)
	if err != nil {
		return s.fail("store_starred_repo", err)
	}
	return nil
}

// UpsertSkill records one observation of a skill: the first insert sets
// repo_count to 1, every later observation increments the running tally and
// refreshes last_used_at.
func (s *Storage) UpsertSkill(ctx context.Context, userID uuid.UUID, skillName, skillType string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO github_user_skills (user_id, skill_name, skill_type, repo_count, last_used_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (user_id, skill_name)
		DO UPDATE SET
			repo_count = github_user_skills.repo_count + 1,
			last_used_at = NOW()`,
		userID, skillName, skillType)
	if err != nil {
		return s.fail("store_skill", err)
	}
	return nil
}

// UpsertUserProfile stores the aggregate GitHub account fields, one row per
// user ever.
func (s *Storage) UpsertUserProfile(ctx context.Context, profile model.UserProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO github_user_profiles (
			user_id, github_username, followers, following, public_repos, public_gists,
			bio, company, location, blog, github_created_at, last_synced_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET
			github_username = EXCLUDED.github_username,
			followers = EXCLUDED.followers,
			following = EXCLUDED.following,
			public_repos = EXCLUDED.public_repos,
			public_gists = EXCLUDED.public_gists,
			bio = EXCLUDED.bio,
			company = EXCLUDED.company,
			location = EXCLUDED.location,
			blog = EXCLUDED.blog,
			last_synced_at = NOW()`,
		profile.UserID, profile.GitHubUsername, profile.Followers, profile.Following,
		profile.PublicRepos, profile.PublicGists, profile.Bio, profile.Company,
		profile.Location, profile.Blog, profile.GitHubJoinedAt)
	if err != nil {
		return s.fail("store_user_profile", err)
	}
	return nil
}

// UpsertUserMetrics stores one daily contribution snapshot, replacing any
// prior counts for the same day.
func (s *Storage) UpsertUserMetrics(ctx context.Context, userID uuid.UUID, repoID int64, counters model.ContributionCounters, metricDate time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO github_user_repo_metrics (
			user_id, repo_id, metric_date,
			commits, additions, deletions,
			prs_opened, prs_merged, prs_closed,
			issues_opened, issues_closed, reviews_given
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, repo_id, metric_date)
		DO UPDATE SET
			commits = EXCLUDED.commits,
			additions = EXCLUDED.additions,
			deletions = EXCLUDED.deletions,
			prs_opened = EXCLUDED.prs_opened,
			prs_merged = EXCLUDED.prs_merged,
			prs_closed = EXCLUDED.prs_closed,
			issues_opened = EXCLUDED.issues_opened,
			issues_closed = EXCLUDED.issues_closed,
			reviews_given = EXCLUDED.reviews_given`,
		userID, repoID, metricDate,
		counters.Commits, counters.Additions, counters.Deletions,
		counters.PRsOpened, counters.PRsMerged, counters.PRsClosed,
		counters.IssuesOpened, counters.IssuesClosed, counters.ReviewsGiven)
	if err != nil {
		return s.fail("store_user_metrics", err)
	}
	return nil
}

// UpsertMonthlyMetrics stores one monthly aggregate, replacing any prior
// counts for the same month so a re-sync converges to the same rows.
func (s *Storage) UpsertMonthlyMetrics(ctx context.Context, userID uuid.UUID, repoID int64, key model.MonthKey, counters model.ContributionCounters) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO github_monthly_metrics (
			user_id, repo_id, year, month,
			commits, additions, deletions,
			prs_opened, prs_merged, prs_closed,
			issues_opened, issues_closed, reviews_given
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, repo_id, year, month)
		DO UPDATE SET
			commits = EXCLUDED.commits,
			additions = EXCLUDED.additions,
			deletions = EXCLUDED.deletions,
			prs_opened = EXCLUDED.prs_opened,
			prs_merged = EXCLUDED.prs_merged,
			prs_closed = EXCLUDED.prs_closed,
			issues_opened = EXCLUDED.issues_opened,
			issues_closed = EXCLUDED.issues_closed,
			reviews_given = EXCLUDED.reviews_given,
			created_at = NOW()`,
		userID, repoID, key.Year, key.Month,
		counters.Commits, counters.Additions, counters.Deletions,
		counters.PRsOpened, counters.PRsMerged, counters.PRsClosed,
		counters.IssuesOpened, counters.IssuesClosed, counters.ReviewsGiven)
	if err != nil {
		return s.fail("store_monthly_metrics", err)
	}
	return nil
}

// DeleteUserData removes all GitHub-derived rows for a user. Each table is
// an independent failure domain: one failed delete is logged and does not
// stop the remaining tables. The joined error is returned for provenance.
func (s *Storage) DeleteUserData(ctx context.Context, userID uuid.UUID) error {
	tables := []string{
		"github_user_skills",
		"github_user_profiles",
		"github_starred_repos",
		"github_organizations",
		"github_monthly_metrics",
		"github_user_repo_metrics",
		"github_repositories",
		"github_connections",
	}

	var errs []error
	for _, table := range tables {
		_, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", table), userID)
		if err != nil {
			s.logger.Error("Failed to delete user rows", "table", table, "user_id", userID, "error", err)
			errs = append(errs, s.fail("delete_"+table, err))
		}
	}
	return errors.Join(errs...)
}
