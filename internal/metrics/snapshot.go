// internal/metrics/snapshot.go
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aditya130805/Crux/internal/model"
	"github.com/Aditya130805/Crux/internal/telemetry"
)

// Diff stats cost one extra API call per commit, so the snapshot path caps
// them. Additions/deletions undercount on repos with more than this many
// commits in the window.
const commitStatsCap = 50

// SnapshotFetcher computes one user's cumulative contribution counters for a
// repository since a cutoff date.
type SnapshotFetcher struct {
	api      API
	username string
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// NewSnapshotFetcher creates a fetcher for the given user.
func NewSnapshotFetcher(api API, username string, logger *slog.Logger, metrics *telemetry.Metrics) *SnapshotFetcher {
	return &SnapshotFetcher{api: api, username: username, logger: logger, metrics: metrics}
}

// FetchRepoSnapshot returns the nine contribution counters for the user's
// activity in owner/repo since the cutoff. A failed data class leaves its
// counters at their last-accumulated value and is recorded in the report;
// the method never returns a hard error for a single repository.
func (f *SnapshotFetcher) FetchRepoSnapshot(ctx context.Context, owner, repo string, since time.Time) (model.ContributionCounters, *Report) {
	var counters model.ContributionCounters
	report := &Report{}

	f.fetchCommits(ctx, owner, repo, since, &counters, report)
	f.fetchPulls(ctx, owner, repo, since, &counters, report)
	f.fetchIssues(ctx, owner, repo, since, &counters, report)
	f.fetchReviews(ctx, owner, repo, &counters, report)

	for _, outcome := range report.Outcomes {
		f.logger.Warn("Snapshot data class degraded",
			"owner", owner, "repo", repo, "class", outcome.Class, "error", outcome.Err)
		if f.metrics != nil {
			f.metrics.ObserveDegradedFetch(string(outcome.Class))
		}
	}

	return counters, report
}

func (f *SnapshotFetcher) fetchCommits(ctx context.Context, owner, repo string, since time.Time, counters *model.ContributionCounters, report *Report) {
	statsFetched := 0
	for page := 1; ; page++ {
		commits, hasMore, err := f.api.RepoCommits(ctx, owner, repo, f.username, since, page)
		if err != nil {
			report.degrade(ClassCommits, err)
			return
		}
		counters.Commits += len(commits)

		for _, commit := range commits {
			if statsFetched >= commitStatsCap {
				break
			}
			additions, deletions, err := f.api.CommitStats(ctx, owner, repo, commit.GetSHA())
			if err != nil {
				report.degrade(ClassCommits, err)
				return
			}
			counters.Additions += additions
			counters.Deletions += deletions
			statsFetched++
		}

		if !hasMore {
			return
		}
	}
}

func (f *SnapshotFetcher) fetchPulls(ctx context.Context, owner, repo string, since time.Time, counters *model.ContributionCounters, report *Report) {
	for page := 1; ; page++ {
		prs, hasMore, err := f.api.PullRequests(ctx, owner, repo, page)
		if err != nil {
			report.degrade(ClassPulls, err)
			return
		}

		for _, pr := range prs {
			if pr.GetUser().GetLogin() != f.username {
				continue
			}
			if pr.GetCreatedAt().Time.Before(since) {
				continue
			}
			counters.PRsOpened++
			if pr.MergedAt != nil {
				counters.PRsMerged++
			} else if pr.GetState() == "closed" {
				counters.PRsClosed++
			}
		}

		if !hasMore {
			return
		}
		// Pages are sorted by creation descending, so once a full page ends
		// before the cutoff nothing further can qualify.
		if last := prs[len(prs)-1]; last.GetCreatedAt().Time.Before(since) {
			return
		}
	}
}

func (f *SnapshotFetcher) fetchIssues(ctx context.Context, owner, repo string, since time.Time, counters *model.ContributionCounters, report *Report) {
	for page := 1; ; page++ {
		issues, hasMore, err := f.api.IssuesByCreator(ctx, owner, repo, f.username, since, page)
		if err != nil {
			report.degrade(ClassIssues, err)
			return
		}

		for _, issue := range issues {
			// The issues endpoint also returns pull requests.
			if issue.IsPullRequest() {
				continue
			}
			counters.IssuesOpened++
			if issue.ClosedAt != nil {
				counters.IssuesClosed++
			}
		}

		if !hasMore {
			return
		}
	}
}

func (f *SnapshotFetcher) fetchReviews(ctx context.Context, owner, repo string, counters *model.ContributionCounters, report *Report) {
	total, err := f.api.ReviewSearchCount(ctx, owner, repo, f.username)
	if err != nil {
		report.degrade(ClassReviews, err)
		return
	}
	// Search total count, not an enumeration; can overcount across paginated
	// search results. Known approximation.
	counters.ReviewsGiven = total
}
