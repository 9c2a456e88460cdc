// internal/metrics/fake_api_test.go
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/google/go-github/v62/github"
)

// fakeAPI pages its fixture slices the way the real client does: 100 items
// per page, hasMore when the page is exactly full.
type fakeAPI struct {
	commits []*github.RepositoryCommit
	prs     []*github.PullRequest
	issues  []*github.Issue

	stats      map[string][2]int
	statsCalls int

	reviewCount int
	reviewedPRs []*github.Issue
	reviews     map[int][]*github.PullRequestReview

	commitsErr error
	statsErr   error
	prsErr     error
	issuesErr  error
	searchErr  error
	reviewsErr error
}

func pageOf[T any](items []T, page int) ([]T, bool) {
	const perPage = 100
	start := (page - 1) * perPage
	if start >= len(items) {
		return nil, false
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], end-start == perPage
}

func (f *fakeAPI) RepoCommits(_ context.Context, _, _, _ string, _ time.Time, page int) ([]*github.RepositoryCommit, bool, error) {
	if f.commitsErr != nil {
		return nil, false, f.commitsErr
	}
	items, hasMore := pageOf(f.commits, page)
	return items, hasMore, nil
}

func (f *fakeAPI) CommitStats(_ context.Context, _, _, sha string) (int, int, error) {
	if f.statsErr != nil {
		return 0, 0, f.statsErr
	}
	f.statsCalls++
	stats, ok := f.stats[sha]
	if !ok {
		return 0, 0, errors.New("unknown sha")
	}
	return stats[0], stats[1], nil
}

func (f *fakeAPI) PullRequests(_ context.Context, _, _ string, page int) ([]*github.PullRequest, bool, error) {
	if f.prsErr != nil {
		return nil, false, f.prsErr
	}
	items, hasMore := pageOf(f.prs, page)
	return items, hasMore, nil
}

func (f *fakeAPI) IssuesByCreator(_ context.Context, _, _, _ string, _ time.Time, page int) ([]*github.Issue, bool, error) {
	if f.issuesErr != nil {
		return nil, false, f.issuesErr
	}
	items, hasMore := pageOf(f.issues, page)
	return items, hasMore, nil
}

func (f *fakeAPI) ReviewSearchCount(_ context.Context, _, _, _ string) (int, error) {
	if f.searchErr != nil {
		return 0, f.searchErr
	}
	return f.reviewCount, nil
}

func (f *fakeAPI) ReviewedPullRequests(_ context.Context, _, _, _ string) ([]*github.Issue, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.reviewedPRs, nil
}

func (f *fakeAPI) PullRequestReviews(_ context.Context, _, _ string, number int) ([]*github.PullRequestReview, error) {
	if f.reviewsErr != nil {
		return nil, f.reviewsErr
	}
	return f.reviews[number], nil
}

// Fixture helpers.

func ghTime(t time.Time) *github.Timestamp {
	return &github.Timestamp{Time: t}
}

func fakeCommit(sha string, authored time.Time) *github.RepositoryCommit {
	return &github.RepositoryCommit{
		SHA: github.String(sha),
		Commit: &github.Commit{
			Author: &github.CommitAuthor{Date: ghTime(authored)},
		},
	}
}

func fakePR(login string, created time.Time, merged, closed *time.Time, state string) *github.PullRequest {
	pr := &github.PullRequest{
		User:      &github.User{Login: github.String(login)},
		CreatedAt: ghTime(created),
		State:     github.String(state),
	}
	if merged != nil {
		pr.MergedAt = ghTime(*merged)
	}
	if closed != nil {
		pr.ClosedAt = ghTime(*closed)
	}
	return pr
}

func fakeIssue(created time.Time, closed *time.Time, isPR bool) *github.Issue {
	issue := &github.Issue{CreatedAt: ghTime(created)}
	if closed != nil {
		issue.ClosedAt = ghTime(*closed)
	}
	if isPR {
		issue.PullRequestLinks = &github.PullRequestLinks{}
	}
	return issue
}

func fakeReview(login string, submitted time.Time) *github.PullRequestReview {
	return &github.PullRequestReview{
		User:        &github.User{Login: github.String(login)},
		SubmittedAt: ghTime(submitted),
	}
}
