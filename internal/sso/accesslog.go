package sso

import (
	"context"
	"time"

	"smartsefaz.org/internal/ids"
	"smartsefaz.org/internal/obs"
)

// Recorder writes access-log entries best-effort. A persistence failure is
// reported to the process log and counted, never propagated: an audit write
// must not turn a completed auth decision into an error.
type Recorder struct {
	store         AccessLogStore
	applicationID string
	timeout       time.Duration
	now           func() time.Time
}

// NewRecorder builds a Recorder bound to one application id.
func NewRecorder(store AccessLogStore, applicationID string, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Recorder{
		store:         store,
		applicationID: applicationID,
		timeout:       timeout,
		now:           time.Now,
	}
}

// Record fills in entry defaults and appends it. The append runs detached from
// the request's cancellation so a client disconnect cannot lose the audit row,
// but still under the store timeout.
func (r *Recorder) Record(ctx context.Context, entry *AccessEntry) {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.ApplicationID == "" {
		entry.ApplicationID = r.applicationID
	}
	if entry.UserID == "" {
		entry.UserID = UnknownUserID
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now().UTC()
	}

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.store.Append(logCtx, entry); err != nil {
		obs.ObserveAccessLogFailure()
		obs.LogEntry(map[string]any{
			"ts":     r.now().UTC().Format(time.RFC3339Nano),
			"level":  "error",
			"msg":    "access_log_append_failed",
			"action": string(entry.Action),
			"user":   entry.UserID,
			"error":  err.Error(),
		})
	}
}
