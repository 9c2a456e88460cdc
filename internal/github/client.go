// internal/github/client.go
package github

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github.com/Aditya130805/Crux/internal/telemetry"
)

const (
	// Max page size GitHub allows on list endpoints.
	pageSize = 100
	// Starred repos are fetched in one smaller page of recent stars.
	starredPageSize = 50
)

// Client is a wrapper around the go-github client. List methods return one
// page at a time plus a "has more" signal derived from page fullness: an
// exact page of pageSize items means another page may exist.
type Client struct {
	gh      *github.Client
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger, metrics *telemetry.Metrics) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:      github.NewClient(tc),
		logger:  logger,
		metrics: metrics,
	}
}

// WithBaseURL points the client at a different API root. Used by tests.
func (c *Client) WithBaseURL(baseURL string) (*Client, error) {
	gh, err := c.gh.WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return nil, err
	}
	c.gh = gh
	return c, nil
}

func (c *Client) observe(resource string, err error) {
	if c.metrics != nil {
		c.metrics.ObserveAPIRequest(resource, err)
	}
}

// UserRepositories fetches the authenticated user's repositories: a single
// page of 100, most recently updated first, restricted to repos the user
// owns or collaborates on.
func (c *Client) UserRepositories(ctx context.Context) ([]*github.Repository, error) {
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		Affiliation: "owner,collaborator",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	repos, _, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
	c.observe("repos", err)
	if err != nil {
		return nil, fmt.Errorf("listing user repositories: %w", err)
	}
	return repos, nil
}

// RepoCommits fetches one page of commits authored by author since the given
// cutoff.
func (c *Client) RepoCommits(ctx context.Context, owner, repo, author string, since time.Time, page int) ([]*github.RepositoryCommit, bool, error) {
	opts := &github.CommitsListOptions{
		Author:      author,
		Since:       since,
		ListOptions: github.ListOptions{PerPage: pageSize, Page: page},
	}
	c.logger.Debug("Fetching commits page", "owner", owner, "repo", repo, "page", page)
	commits, _, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
	c.observe("commits", err)
	if err != nil {
		return nil, false, fmt.Errorf("listing commits for %s/%s: %w", owner, repo, err)
	}
	return commits, len(commits) == pageSize, nil
}

// CommitStats fetches the additions/deletions totals for one commit.
func (c *Client) CommitStats(ctx context.Context, owner, repo, sha string) (additions, deletions int, err error) {
	commit, _, err := c.gh.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	c.observe("commit_stats", err)
	if err != nil {
		return 0, 0, fmt.Errorf("fetching commit %s: %w", sha, err)
	}
	stats := commit.GetStats()
	return stats.GetAdditions(), stats.GetDeletions(), nil
}

// PullRequests fetches one page of pull requests in all states, newest
// created first.
func (c *Client) PullRequests(ctx context.Context, owner, repo string, page int) ([]*github.PullRequest, bool, error) {
	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: pageSize, Page: page},
	}
	prs, _, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
	c.observe("pulls", err)
	if err != nil {
		return nil, false, fmt.Errorf("listing pull requests for %s/%s: %w", owner, repo, err)
	}
	return prs, len(prs) == pageSize, nil
}

// IssuesByCreator fetches one page of issues opened by creator since the
// cutoff. The endpoint conflates issues and pull requests; callers must skip
// items carrying a pull-request marker.
func (c *Client) IssuesByCreator(ctx context.Context, owner, repo, creator string, since time.Time, page int) ([]*github.Issue, bool, error) {
	opts := &github.IssueListByRepoOptions{
		Creator:     creator,
		State:       "all",
		Since:       since,
		ListOptions: github.ListOptions{PerPage: pageSize, Page: page},
	}
	issues, _, err := c.gh.Issues.ListByRepo(ctx, owner, repo, opts)
	c.observe("issues", err)
	if err != nil {
		return nil, false, fmt.Errorf("listing issues for %s/%s: %w", owner, repo, err)
	}
	return issues, len(issues) == pageSize, nil
}

// ReviewSearchCount returns the search endpoint's total count of pull
// requests in the repo reviewed by reviewer. Bounded by the search API's own
// result caps; treated as an approximation by callers.
func (c *Client) ReviewSearchCount(ctx context.Context, owner, repo, reviewer string) (int, error) {
	query := fmt.Sprintf("repo:%s/%s reviewed-by:%s type:pr", owner, repo, reviewer)
	result, _, err := c.gh.Search.Issues(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: pageSize},
	})
	c.observe("search", err)
	if err != nil {
		return 0, fmt.Errorf("searching reviews for %s/%s: %w", owner, repo, err)
	}
	return result.GetTotal(), nil
}

// ReviewedPullRequests returns the first search page of pull requests in the
// repo that reviewer has reviewed.
func (c *Client) ReviewedPullRequests(ctx context.Context, owner, repo, reviewer string) ([]*github.Issue, error) {
	query := fmt.Sprintf("repo:%s/%s reviewed-by:%s type:pr", owner, repo, reviewer)
	result, _, err := c.gh.Search.Issues(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: pageSize},
	})
	c.observe("search", err)
	if err != nil {
		return nil, fmt.Errorf("searching reviewed PRs for %s/%s: %w", owner, repo, err)
	}
	return result.Issues, nil
}

// PullRequestReviews fetches the review list for one pull request.
func (c *Client) PullRequestReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error) {
	reviews, _, err := c.gh.PullRequests.ListReviews(ctx, owner, repo, number, nil)
	c.observe("reviews", err)
	if err != nil {
		return nil, fmt.Errorf("listing reviews for %s/%s#%d: %w", owner, repo, number, err)
	}
	return reviews, nil
}

// Organizations fetches the authenticated user's organization memberships.
func (c *Client) Organizations(ctx context.Context) ([]*github.Organization, error) {
	orgs, _, err := c.gh.Organizations.List(ctx, "", &github.ListOptions{PerPage: pageSize})
	c.observe("orgs", err)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	return orgs, nil
}

// StarredRepositories fetches the user's most recently starred repositories.
func (c *Client) StarredRepositories(ctx context.Context) ([]*github.StarredRepository, error) {
	opts := &github.ActivityListStarredOptions{
		Sort:        "created",
		ListOptions: github.ListOptions{PerPage: starredPageSize},
	}
	starred, _, err := c.gh.Activity.ListStarred(ctx, "", opts)
	c.observe("starred", err)
	if err != nil {
		return nil, fmt.Errorf("listing starred repositories: %w", err)
	}
	return starred, nil
}

// RecentEvents fetches a single capped page of the user's public activity
// feed.
func (c *Client) RecentEvents(ctx context.Context, username string) ([]*github.Event, error) {
	events, _, err := c.gh.Activity.ListEventsPerformedByUser(ctx, username, false, &github.ListOptions{PerPage: pageSize})
	c.observe("events", err)
	if err != nil {
		return nil, fmt.Errorf("listing events for %s: %w", username, err)
	}
	return events, nil
}

// AuthenticatedUser fetches the profile of the token's owner.
func (c *Client) AuthenticatedUser(ctx context.Context) (*github.User, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	c.observe("user", err)
	if err != nil {
		return nil, fmt.Errorf("fetching authenticated user: %w", err)
	}
	return user, nil
}
