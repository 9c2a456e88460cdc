// internal/metrics/types.go
package metrics

import (
	"context"
	"time"

	"github.com/google/go-github/v62/github"
)

// API is the subset of the GitHub client the fetchers depend on.
type API interface {
	RepoCommits(ctx context.Context, owner, repo, author string, since time.Time, page int) ([]*github.RepositoryCommit, bool, error)
	CommitStats(ctx context.Context, owner, repo, sha string) (additions, deletions int, err error)
	PullRequests(ctx context.Context, owner, repo string, page int) ([]*github.PullRequest, bool, error)
	IssuesByCreator(ctx context.Context, owner, repo, creator string, since time.Time, page int) ([]*github.Issue, bool, error)
	ReviewSearchCount(ctx context.Context, owner, repo, reviewer string) (int, error)
	ReviewedPullRequests(ctx context.Context, owner, repo, reviewer string) ([]*github.Issue, error)
	PullRequestReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error)
}

// DataClass names one of the four contribution data classes a fetch covers.
type DataClass string

const (
	ClassCommits DataClass = "commits"
	ClassPulls   DataClass = "pulls"
	ClassIssues  DataClass = "issues"
	ClassReviews DataClass = "reviews"
)

// Outcome records a sub-fetch that could not complete. The counters for that
// class keep whatever was accumulated before the failure; absence of data
// means "unknown", not "zero".
type Outcome struct {
	Class DataClass
	Err   error
}

// Report collects the degraded outcomes of one fetch. An empty report means
// every data class completed.
type Report struct {
	Outcomes []Outcome
}

func (r *Report) degrade(class DataClass, err error) {
	r.Outcomes = append(r.Outcomes, Outcome{Class: class, Err: err})
}

// Degraded reports whether any data class failed to complete.
func (r *Report) Degraded() bool {
	return len(r.Outcomes) > 0
}
