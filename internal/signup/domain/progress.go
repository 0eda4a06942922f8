package domain

import "time"

// SentinelAccountID marks progress events for signups that failed before an
// Account row ever existed.
const SentinelAccountID int64 = -1

// ProgressEvent is a transient status update pushed by a worker as it moves
// an Account through its lifecycle. Events are never persisted; consumers
// that attach late never see earlier events.
//
// JSON field names match what the dashboard consumes over SSE.
type ProgressEvent struct {
	AccountID int64     `json:"accountId"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	EmittedAt time.Time `json:"emitted_at"`
}
