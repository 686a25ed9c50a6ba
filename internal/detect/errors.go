package detect

import "errors"

// Error taxonomy for detection runs. Analyzer failures are retried locally
// before escalating; everything else is terminal for the job.
var (
	// ErrInputUnavailable means the source media could not be fetched or
	// probed. A missing transcript is NOT this error; speech scoring
	// degrades to neutral instead.
	ErrInputUnavailable = errors.New("input unavailable")

	// ErrAnalyzerFailure wraps a transient analyzer error after retries
	// are exhausted.
	ErrAnalyzerFailure = errors.New("analyzer failure")

	// ErrTimeout means the job exceeded its wall-clock budget. Partial
	// work is discarded.
	ErrTimeout = errors.New("detection timed out")

	// ErrCancelled means an external cancellation signal stopped the job
	// between stages.
	ErrCancelled = errors.New("detection cancelled")

	// ErrInvalidWeights means the requested score weights do not sum to
	// 1.0. Rejected at trigger time, never mid-run.
	ErrInvalidWeights = errors.New("invalid score weights")
)
