package store

import (
	"context"
	"errors"
	"time"

	"github.com/pixelgrid/signupmill/internal/signup/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrIllegalTransition reports an update that would move an account
	// backward or out of a terminal state.
	ErrIllegalTransition = errors.New("store: illegal status transition")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. Sub-repositories keep concerns tidy and testable.
type Store interface {
	Accounts() Accounts

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to do multi-step updates that must be atomic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// CreateAccount inserts a pending account and returns it with its
	// assigned id. Returns ErrAlreadyExists when the email is taken.
	CreateAccount(ctx context.Context, email, fullName string) (domain.Account, error)

	// GetAccountByID returns an account by id.
	GetAccountByID(ctx context.Context, id int64) (domain.Account, error)

	// ListAccounts returns all accounts, newest first.
	ListAccounts(ctx context.Context) ([]domain.Account, error)

	// UpdateStatus moves an account to a non-terminal status. Terminal rows
	// are never touched; such updates return ErrIllegalTransition.
	UpdateStatus(ctx context.Context, id int64, status domain.Status) error

	// SetVerificationLink records the link the worker is following.
	SetVerificationLink(ctx context.Context, id int64, link string) error

	// MarkVerified moves an account into verified and stores its tokens.
	// Fails with ErrIllegalTransition if the account is already terminal.
	MarkVerified(ctx context.Context, id int64, accessToken, refreshToken string, tokenExpiresAt *time.Time) error

	// MarkFailed moves an account into failed and records the diagnostic.
	// Fails with ErrIllegalTransition if the account is already terminal.
	MarkFailed(ctx context.Context, id int64, errorLog string) error

	// CountByStatus returns how many accounts sit in each status.
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
}
