// internal/model/models.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Repository represents a GitHub repository as imported for one user.
// Rows are keyed by (UserID, RepoID) and upserted on every sync.
type Repository struct {
	UserID        uuid.UUID  `json:"-"`
	RepoID        int64      `json:"repo_id"`
	Name          string     `json:"repo_name"`
	FullName      string     `json:"repo_full_name"`
	Description   *string    `json:"description"`
	URL           string     `json:"url"`
	Homepage      *string    `json:"homepage,omitempty"`
	Language      *string    `json:"language"`
	Stars         int        `json:"stars"`
	Forks         int        `json:"forks"`
	Watchers      int        `json:"watchers"`
	OpenIssues    int        `json:"open_issues"`
	Size          int        `json:"size"`
	IsPrivate     bool       `json:"is_private"`
	IsFork        bool       `json:"is_fork"`
	DefaultBranch string     `json:"default_branch,omitempty"`
	License       *string    `json:"license,omitempty"`
	CreatedAt     *time.Time `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
	PushedAt      *time.Time `json:"pushed_at,omitempty"`
	LastSyncedAt  time.Time  `json:"-"`
}

// Organization is a GitHub organization the user belongs to. Insert-once.
type Organization struct {
	UserID      uuid.UUID `json:"-"`
	OrgID       int64     `json:"org_id"`
	Login       string    `json:"org_login"`
	Name        string    `json:"org_name"`
	Description *string   `json:"description"`
	URL         string    `json:"url"`
}

// StarredRepo is a popular repository the user has starred. Insert-once.
type StarredRepo struct {
	UserID      uuid.UUID `json:"-"`
	RepoID      int64     `json:"repo_id"`
	Name        string    `json:"repo_name"`
	FullName    string    `json:"repo_full_name"`
	Description *string   `json:"description"`
	URL         string    `json:"url"`
	Stars       int       `json:"stars"`
}

// Skill is a technology inferred from a repository's language or topics.
// Each additional observation bumps RepoCount rather than replacing the row.
type Skill struct {
	UserID     uuid.UUID `json:"-"`
	Name       string    `json:"skill_name"`
	Type       string    `json:"skill_type"` // "language" or "technology"
	RepoCount  int       `json:"repo_count"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// UserProfile holds the aggregate GitHub account fields. One row per user.
type UserProfile struct {
	UserID         uuid.UUID  `json:"-"`
	GitHubUsername string     `json:"github_username"`
	Followers      int        `json:"followers"`
	Following      int        `json:"following"`
	PublicRepos    int        `json:"public_repos"`
	PublicGists    int        `json:"public_gists"`
	Bio            *string    `json:"bio"`
	Company        *string    `json:"company"`
	Location       *string    `json:"location"`
	Blog           *string    `json:"blog"`
	GitHubJoinedAt *time.Time `json:"github_created_at"`
}

// Connection is the stored GitHub credential for a user.
type Connection struct {
	UserID         uuid.UUID `json:"-"`
	GitHubUsername string    `json:"github_username"`
	AccessToken    string    `json:"-"`
	ConnectedAt    time.Time `json:"connected_at"`
}

// ContributionCounters is the fixed nine-counter shape shared by daily
// snapshots and monthly aggregates. The zero value means "no activity".
type ContributionCounters struct {
	Commits      int `json:"commits"`
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	PRsOpened    int `json:"prs_opened"`
	PRsMerged    int `json:"prs_merged"`
	PRsClosed    int `json:"prs_closed"`
	IssuesOpened int `json:"issues_opened"`
	IssuesClosed int `json:"issues_closed"`
	ReviewsGiven int `json:"reviews_given"`
}

// MonthKey identifies one calendar-month bucket.
type MonthKey struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// KeyFor returns the bucket key for a timestamp (UTC calendar month).
func KeyFor(t time.Time) MonthKey {
	u := t.UTC()
	return MonthKey{Year: u.Year(), Month: int(u.Month())}
}

// MonthlyRepoMetrics is one stored monthly aggregate row joined with the
// repository's descriptive fields, as served by the analytics endpoint.
type MonthlyRepoMetrics struct {
	RepoID       int64   `json:"repo_id"`
	RepoName     string  `json:"repo_name"`
	RepoFullName string  `json:"repo_full_name"`
	Language     *string `json:"language"`
	URL          string  `json:"url"`
	MonthKey
	ContributionCounters
}

// MonthlyTotals is one month summed across a set of repositories.
type MonthlyTotals struct {
	MonthKey
	TotalCommits      int `json:"total_commits"`
	TotalAdditions    int `json:"total_additions"`
	TotalDeletions    int `json:"total_deletions"`
	TotalPRsOpened    int `json:"total_prs_opened"`
	TotalPRsMerged    int `json:"total_prs_merged"`
	TotalPRsClosed    int `json:"total_prs_closed"`
	TotalIssuesOpened int `json:"total_issues_opened"`
	TotalIssuesClosed int `json:"total_issues_closed"`
	TotalReviewsGiven int `json:"total_reviews_given"`
	ActiveRepos       int `json:"active_repos"`
}

// EventTotals are contribution counts classified from the recent events feed.
type EventTotals struct {
	Commits      int `json:"commits"`
	PullRequests int `json:"pull_requests"`
	Issues       int `json:"issues"`
	Reviews      int `json:"reviews"`
}

// SyncSummary is the result returned by a sync run.
type SyncSummary struct {
	Success        bool     `json:"success"`
	ProjectsAdded  int      `json:"projects_added"`
	SkillsInferred []string `json:"skills_inferred"`
	Message        string   `json:"message"`
}
