package domain

import "time"

// Status is the lifecycle state of an Account. The success path is strictly
// ordered; failed is absorbing and reachable from any non-terminal state.
type Status string

const (
	StatusPending              Status = "pending"
	StatusCredentialsGenerated Status = "credentials_generated"
	StatusVerificationLinkSent Status = "verification_link_sent"
	StatusEmailReceived        Status = "email_received"
	StatusVerified             Status = "verified"
	StatusFailed               Status = "failed"
)

var statusRank = map[Status]int{
	StatusPending:              0,
	StatusCredentialsGenerated: 1,
	StatusVerificationLinkSent: 2,
	StatusEmailReceived:        3,
	StatusVerified:             4,
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusFailed
}

// IsValid reports whether s is one of the defined statuses.
func (s Status) IsValid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether the move from s to next is legal: forward
// along the success path, or into failed from any non-terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Account is one attempted or completed signup against the auth provider.
// Exactly one worker invocation owns an Account for its whole lifecycle.
type Account struct {
	ID               int64
	Email            string // unique, immutable after creation
	FullName         string
	Status           Status
	AccessToken      *string    // set only on transition into verified
	RefreshToken     *string    // set only on transition into verified
	TokenExpiresAt   *time.Time // exp claim peeked from the access token, when present
	VerificationLink *string    // the link that was (or was being) followed
	ErrorLog         *string    // set only on transition into failed
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Verified reports whether the account completed the flow with tokens.
func (a Account) Verified() bool {
	return a.Status == StatusVerified && a.AccessToken != nil && a.RefreshToken != nil
}
