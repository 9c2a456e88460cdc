// internal/metrics/monthly.go
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aditya130805/Crux/internal/model"
	"github.com/Aditya130805/Crux/internal/telemetry"
)

// DefaultMonthsBack is the trailing window used when no override is
// configured.
const DefaultMonthsBack = 12

// Buckets maps a calendar month to its contribution counters. Lookups for
// months outside the initialized window miss, which drops the event.
type Buckets map[model.MonthKey]*model.ContributionCounters

// NewBuckets initializes one zero-filled bucket per month from the first day
// of (now − monthsBack)'s month through now, inclusive.
func NewBuckets(now time.Time, monthsBack int) Buckets {
	buckets := make(Buckets, monthsBack+1)
	start := now.UTC().AddDate(0, -monthsBack, 0)
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(now.UTC()) {
		buckets[model.KeyFor(cursor)] = &model.ContributionCounters{}
		cursor = cursor.AddDate(0, 1, 0)
	}
	return buckets
}

// MonthlyFetcher buckets one user's contributions to a repository into
// calendar-month windows over a trailing horizon.
type MonthlyFetcher struct {
	api      API
	username string
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// NewMonthlyFetcher creates a fetcher for the given user.
func NewMonthlyFetcher(api API, username string, logger *slog.Logger, metrics *telemetry.Metrics) *MonthlyFetcher {
	return &MonthlyFetcher{api: api, username: username, logger: logger, metrics: metrics, now: time.Now}
}

// FetchMonthly returns the per-month counters for owner/repo over the
// trailing monthsBack window. Each data class is a separate fold over the
// bucket map; a failed class keeps whatever it accumulated and is recorded
// in the report.
func (f *MonthlyFetcher) FetchMonthly(ctx context.Context, owner, repo string, monthsBack int) (Buckets, *Report) {
	if monthsBack <= 0 {
		monthsBack = DefaultMonthsBack
	}
	now := f.now().UTC()
	windowStart := now.AddDate(0, -monthsBack, 0)
	buckets := NewBuckets(now, monthsBack)
	report := &Report{}

	f.foldCommits(ctx, buckets, owner, repo, windowStart, report)
	f.foldPulls(ctx, buckets, owner, repo, windowStart, report)
	f.foldIssues(ctx, buckets, owner, repo, windowStart, report)
	f.foldReviews(ctx, buckets, owner, repo, windowStart, report)

	for _, outcome := range report.Outcomes {
		f.logger.Warn("Monthly data class degraded",
			"owner", owner, "repo", repo, "class", outcome.Class, "error", outcome.Err)
		if f.metrics != nil {
			f.metrics.ObserveDegradedFetch(string(outcome.Class))
		}
	}

	return buckets, report
}

// foldCommits attributes each commit to the month of its author date. Diff
// stats are fetched per commit with no cap here, unlike the snapshot path;
// historical buckets need full additions/deletions at the price of one extra
// API call per commit.
func (f *MonthlyFetcher) foldCommits(ctx context.Context, buckets Buckets, owner, repo string, windowStart time.Time, report *Report) {
	for page := 1; ; page++ {
		commits, hasMore, err := f.api.RepoCommits(ctx, owner, repo, f.username, windowStart, page)
		if err != nil {
			report.degrade(ClassCommits, err)
			return
		}

		for _, commit := range commits {
			authored := commit.GetCommit().GetAuthor().GetDate().Time
			bucket, ok := buckets[model.KeyFor(authored)]
			if !ok {
				continue
			}
			bucket.Commits++

			additions, deletions, err := f.api.CommitStats(ctx, owner, repo, commit.GetSHA())
			if err != nil {
				f.logger.Warn("Could not fetch commit stats",
					"owner", owner, "repo", repo, "sha", commit.GetSHA(), "error", err)
				continue
			}
			bucket.Additions += additions
			bucket.Deletions += deletions
		}

		if !hasMore {
			return
		}
	}
}

// foldPulls attributes a PR's opening to its creation month and its outcome
// to the outcome's own month: a PR opened in January and merged in March
// counts prs_opened in January and prs_merged in March. Closed is only
// attributed when the PR closed without merging.
func (f *MonthlyFetcher) foldPulls(ctx context.Context, buckets Buckets, owner, repo string, windowStart time.Time, report *Report) {
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
			created := pr.GetCreatedAt().Time
			if created.Before(windowStart) {
				continue
			}

			if bucket, ok := buckets[model.KeyFor(created)]; ok {
				bucket.PRsOpened++
			}
			if pr.MergedAt != nil {
				if bucket, ok := buckets[model.KeyFor(pr.GetMergedAt().Time)]; ok {
					bucket.PRsMerged++
				}
			} else if pr.ClosedAt != nil {
				if bucket, ok := buckets[model.KeyFor(pr.GetClosedAt().Time)]; ok {
					bucket.PRsClosed++
				}
			}
		}

		if !hasMore {
			return
		}
		// Sorted by creation descending, so a full page ending before the
		// window start exhausts the qualifying PRs.
		if last := prs[len(prs)-1]; last.GetCreatedAt().Time.Before(windowStart) {
			return
		}
	}
}

// foldIssues attributes opening and closing to their own months
// independently.
func (f *MonthlyFetcher) foldIssues(ctx context.Context, buckets Buckets, owner, repo string, windowStart time.Time, report *Report) {
	for page := 1; ; page++ {
		issues, hasMore, err := f.api.IssuesByCreator(ctx, owner, repo, f.username, windowStart, page)
		if err != nil {
			report.degrade(ClassIssues, err)
			return
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			if bucket, ok := buckets[model.KeyFor(issue.GetCreatedAt().Time)]; ok {
				bucket.IssuesOpened++
			}
			if issue.ClosedAt != nil {
				if bucket, ok := buckets[model.KeyFor(issue.GetClosedAt().Time)]; ok {
					bucket.IssuesClosed++
				}
			}
		}

		if !hasMore {
			return
		}
	}
}

// foldReviews enumerates the user's review submissions on PRs found by the
// reviewed-by search and buckets each by its submission month.
func (f *MonthlyFetcher) foldReviews(ctx context.Context, buckets Buckets, owner, repo string, windowStart time.Time, report *Report) {
	prs, err := f.api.ReviewedPullRequests(ctx, owner, repo, f.username)
	if err != nil {
		report.degrade(ClassReviews, err)
		return
	}

	for _, pr := range prs {
		reviews, err := f.api.PullRequestReviews(ctx, owner, repo, pr.GetNumber())
		if err != nil {
			report.degrade(ClassReviews, err)
			return
		}
		for _, review := range reviews {
			if review.GetUser().GetLogin() != f.username {
				continue
			}
			submitted := review.GetSubmittedAt().Time
			if submitted.Before(windowStart) {
				continue
			}
			if bucket, ok := buckets[model.KeyFor(submitted)]; ok {
				bucket.ReviewsGiven++
			}
		}
	}
}
