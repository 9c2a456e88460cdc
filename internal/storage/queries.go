// internal/storage/queries.go
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Aditya130805/Crux/internal/model"
)

// MetricsFilter narrows monthly-metrics queries. RepoIDs restricts to a repo
// subset when non-empty; StartYear/StartMonth set an inclusive (year, month)
// floor when both are non-zero.
type MetricsFilter struct {
	RepoIDs    []int64
	StartYear  int
	StartMonth int
}

// GetUserRepositories returns the user's stored repositories, newest updated
// first, optionally restricted to those whose full name starts with
// "ownerFilter/".
func (s *Storage) GetUserRepositories(ctx context.Context, userID uuid.UUID, ownerFilter string) ([]model.Repository, error) {
	query := `
		SELECT repo_id, repo_name, repo_full_name, description, url, language,
		       stars, forks, is_private, created_at, updated_at
		FROM github_repositories
		WHERE user_id = $1`
	args := []any{userID}

	if ownerFilter != "" {
		query += ` AND repo_full_name LIKE $2`
		args = append(args, ownerFilter+"/%")
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, s.fail("get_user_repositories", err)
	}
	defer rows.Close()

	repos := []model.Repository{}
	for rows.Next() {
		repo := model.Repository{UserID: userID}
		if err := rows.Scan(
			&repo.RepoID, &repo.Name, &repo.FullName, &repo.Description, &repo.URL,
			&repo.Language, &repo.Stars, &repo.Forks, &repo.IsPrivate,
			&repo.CreatedAt, &repo.UpdatedAt,
		); err != nil {
			return nil, s.fail("get_user_repositories", err)
		}
		repos = append(repos, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("get_user_repositories", err)
	}
	return repos, nil
}

// GetMonthlyMetrics returns monthly aggregate rows joined with repository
// descriptive fields, newest month first, then by repository name.
func (s *Storage) GetMonthlyMetrics(ctx context.Context, userID uuid.UUID, filter MetricsFilter) ([]model.MonthlyRepoMetrics, error) {
	query := `
		SELECT m.repo_id, r.repo_name, r.repo_full_name, r.language, r.url,
		       m.year, m.month,
		       m.commits, m.additions, m.deletions,
		       m.prs_opened, m.prs_merged, m.prs_closed,
		       m.issues_opened, m.issues_closed, m.reviews_given
		FROM github_monthly_metrics m
		JOIN github_repositories r ON m.repo_id = r.repo_id AND m.user_id = r.user_id
		WHERE m.user_id = $1`
	args := []any{userID}

	if len(filter.RepoIDs) > 0 {
		args = append(args, filter.RepoIDs)
		query += fmt.Sprintf(` AND m.repo_id = ANY($%d)`, len(args))
	}
	if filter.StartYear > 0 && filter.StartMonth > 0 {
		args = append(args, filter.StartYear, filter.StartMonth)
		query += fmt.Sprintf(` AND (m.year > $%d OR (m.year = $%d AND m.month >= $%d))`,
			len(args)-1, len(args)-1, len(args))
	}
	query += ` ORDER BY m.year DESC, m.month DESC, r.repo_name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, s.fail("get_monthly_metrics", err)
	}
	defer rows.Close()

	metrics := []model.MonthlyRepoMetrics{}
	for rows.Next() {
		var row model.MonthlyRepoMetrics
		if err := rows.Scan(
			&row.RepoID, &row.RepoName, &row.RepoFullName, &row.Language, &row.URL,
			&row.Year, &row.Month,
			&row.Commits, &row.Additions, &row.Deletions,
			&row.PRsOpened, &row.PRsMerged, &row.PRsClosed,
			&row.IssuesOpened, &row.IssuesClosed, &row.ReviewsGiven,
		); err != nil {
			return nil, s.fail("get_monthly_metrics", err)
		}
		metrics = append(metrics, row)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("get_monthly_metrics", err)
	}
	return metrics, nil
}

// GetAggregatedMonthlyMetrics returns one row per month summed across the
// (filtered) repository set, with a count of distinct repositories active
// that month.
func (s *Storage) GetAggregatedMonthlyMetrics(ctx context.Context, userID uuid.UUID, filter MetricsFilter) ([]model.MonthlyTotals, error) {
	query := `
		SELECT year, month,
		       SUM(commits) AS total_commits,
		       SUM(additions) AS total_additions,
		       SUM(deletions) AS total_deletions,
		       SUM(prs_opened) AS total_prs_opened,
		       SUM(prs_merged) AS total_prs_merged,
		       SUM(prs_closed) AS total_prs_closed,
		       SUM(issues_opened) AS total_issues_opened,
		       SUM(issues_closed) AS total_issues_closed,
		       SUM(reviews_given) AS total_reviews_given,
		       COUNT(DISTINCT repo_id) AS active_repos
		FROM github_monthly_metrics
		WHERE user_id = $1`
	args := []any{userID}

	if len(filter.RepoIDs) > 0 {
		args = append(args, filter.RepoIDs)
		query += fmt.Sprintf(` AND repo_id = ANY($%d)`, len(args))
	}
	if filter.StartYear > 0 && filter.StartMonth > 0 {
		args = append(args, filter.StartYear, filter.StartMonth)
		query += fmt.Sprintf(` AND (year > $%d OR (year = $%d AND month >= $%d))`,
			len(args)-1, len(args)-1, len(args))
	}
	query += ` GROUP BY year, month ORDER BY year DESC, month DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, s.fail("get_aggregated_monthly_metrics", err)
	}
	defer rows.Close()

	totals := []model.MonthlyTotals{}
	for rows.Next() {
		var row model.MonthlyTotals
		if err := rows.Scan(
			&row.Year, &row.Month,
			&row.TotalCommits, &row.TotalAdditions, &row.TotalDeletions,
			&row.TotalPRsOpened, &row.TotalPRsMerged, &row.TotalPRsClosed,
			&row.TotalIssuesOpened, &row.TotalIssuesClosed, &row.TotalReviewsGiven,
			&row.ActiveRepos,
		); err != nil {
			return nil, s.fail("get_aggregated_monthly_metrics", err)
		}
		totals = append(totals, row)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("get_aggregated_monthly_metrics", err)
	}
	return totals, nil
}
