package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/use-agent/scrapekit/metrics"
)

// MinPollInterval is the shortest wait between two status checks.
// Shorter intervals are raised to it.
const MinPollInterval = 2 * time.Second

// PollOptions bounds a Poll loop. The zero value polls every
// MinPollInterval until the job ends or ctx is canceled.
type PollOptions struct {
	// Interval between status checks, floored to MinPollInterval.
	Interval time.Duration

	// Timeout bounds the whole loop. Zero means no deadline.
	Timeout time.Duration

	// MaxAttempts bounds the number of status checks. Zero means no limit.
	MaxAttempts int
}

func (o PollOptions) interval() time.Duration {
	return max(o.Interval, MinPollInterval)
}

// Poll checks a crawl job until it reaches a terminal state.
//
// The first check happens at once, every later check after a sleep of the
// effective interval. In-progress states (queued, pending, active, paused)
// keep the loop going. completed returns the job data, or a
// JOB_INCOMPLETE_DATA error when there is none. Every other status fails
// with JOB_FAILED. Running out of Timeout or MaxAttempts is
// JOB_POLL_TIMEOUT; cancellation of ctx returns ctx.Err().
func (c *Client) Poll(ctx context.Context, jobID string, opts PollOptions) (json.RawMessage, error) {
	interval := opts.interval()

	pollCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var last JobStatus
	for attempt := 0; ; attempt++ {
		if opts.MaxAttempts > 0 && attempt >= opts.MaxAttempts {
			return nil, pollTimeout(jobID, last, "attempt limit reached")
		}

		if attempt > 0 {
			if err := c.sleep(pollCtx, interval); err != nil {
				return nil, pollAborted(ctx, jobID, last, err)
			}
		}

		job, err := c.CheckCrawlStatus(pollCtx, jobID)
		if err != nil {
			return nil, pollAborted(ctx, jobID, last, err)
		}
		last = job.Status
		metrics.ObservePollCheck(job.Status.metricLabel())

		switch {
		case job.Status == StatusCompleted:
			if !job.HasData() {
				return nil, &Error{Code: CodeJobIncompleteData, JobID: jobID, Status: job.Status}
			}
			c.logger.Info("crawl job completed", "job_id", jobID, "checks", attempt+1)
			return job.Data, nil

		case job.Status.InProgress():
			c.logger.Debug("crawl job in progress",
				"job_id", jobID,
				"status", job.Status,
				"current", job.Current,
				"total", job.Total,
			)

		default:
			return nil, &Error{Code: CodeJobFailed, JobID: jobID, Status: job.Status, Message: job.Error}
		}
	}
}

// pollAborted classifies an error that interrupted the loop. The poll's
// own deadline is a JOB_POLL_TIMEOUT; the caller's cancellation or deadline
// is returned as ctx.Err().
func pollAborted(ctx context.Context, jobID string, last JobStatus, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pollTimeout(jobID, last, "deadline exceeded")
	}
	return err
}

func pollTimeout(jobID string, last JobStatus, msg string) error {
	return &Error{Code: CodeJobPollTimeout, JobID: jobID, Status: last, Message: msg}
}
