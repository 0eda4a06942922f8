// Package service holds the signup pipeline: credential generation, the
// worker state machine that drives one account from mailbox creation to
// captured session tokens, and the launcher that fans workers out.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixelgrid/signupmill/internal/signup/domain"
	"github.com/pixelgrid/signupmill/internal/signup/mailbox"
	"github.com/pixelgrid/signupmill/internal/signup/store"
	"github.com/pixelgrid/signupmill/pkg/idx"
	"github.com/pixelgrid/signupmill/pkg/jwtx"
)

// MailboxClient is the slice of the mailbox service a worker needs.
type MailboxClient interface {
	CreateAddress(ctx context.Context, localPart, domain string) (string, error)
	ListMessages(ctx context.Context, address string) ([]mailbox.Message, error)
}

// ProviderClient is the slice of the auth provider a worker needs.
type ProviderClient interface {
	SignUp(ctx context.Context, email, password, fullName string) error
	FetchVerification(ctx context.Context, link string) (string, error)
	ResolveRedirect(ctx context.Context, wrapper string) (string, error)
}

// ProgressSink receives progress events as the worker moves through its
// stages. Publishing must never block the worker.
type ProgressSink interface {
	Publish(event domain.ProgressEvent)
}

// WorkerConfig carries the pacing knobs of a single signup attempt. Zero
// values fall back to the defaults below.
type WorkerConfig struct {
	// PollTimeout bounds how long the worker waits for the verification
	// email before giving up on the attempt.
	PollTimeout time.Duration

	// PollInterval is the delay between mailbox listings.
	PollInterval time.Duration

	// VerifyAttempts is how many times the verification link is fetched
	// before the attempt fails.
	VerifyAttempts int

	// VerifyBackoff is the fixed delay between verification fetches.
	VerifyBackoff time.Duration
}

const (
	defaultPollTimeout    = 90 * time.Second
	defaultPollInterval   = 3 * time.Second
	defaultVerifyAttempts = 3
	defaultVerifyBackoff  = 2 * time.Second
)

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.VerifyAttempts <= 0 {
		c.VerifyAttempts = defaultVerifyAttempts
	}
	if c.VerifyBackoff <= 0 {
		c.VerifyBackoff = defaultVerifyBackoff
	}
	return c
}

// Worker drives one signup attempt end to end. A worker is single-use;
// build one per attempt.
type Worker struct {
	store     store.Store
	mailbox   MailboxClient
	provider  ProviderClient
	creds     *CredentialGenerator
	extractor *LinkExtractor
	sink      ProgressSink
	logger    *slog.Logger
	cfg       WorkerConfig
}

// NewWorker wires a worker from its collaborators.
func NewWorker(
	st store.Store,
	mb MailboxClient,
	pr ProviderClient,
	creds *CredentialGenerator,
	extractor *LinkExtractor,
	sink ProgressSink,
	logger *slog.Logger,
	cfg WorkerConfig,
) *Worker {
	return &Worker{
		store:     st,
		mailbox:   mb,
		provider:  pr,
		creds:     creds,
		extractor: extractor,
		sink:      sink,
		logger:    logger,
		cfg:       cfg.withDefaults(),
	}
}

// Run executes the full signup pipeline and returns the account id it worked
// on, or domain.SentinelAccountID when the attempt died before an account
// row existed. The returned error is the stage failure that terminated the
// attempt; a nil error means the account reached verified.
func (w *Worker) Run(ctx context.Context) (int64, error) {
	w.logger = w.logger.With(slog.String("invocation", idx.New().String()))

	creds, err := w.creds.Generate()
	if err != nil {
		return w.failBeforeCreate("", "", "could not generate credentials",
			fmt.Errorf("credential generation failed: %w", err))
	}

	address, err := w.mailbox.CreateAddress(ctx, creds.LocalPart, creds.Domain)
	if err != nil {
		return w.failBeforeCreate(creds.LocalPart+"@"+creds.Domain, creds.FullName,
			"could not create mailbox address",
			fmt.Errorf("mailbox address creation failed: %w", err))
	}

	account, err := w.store.Accounts().CreateAccount(ctx, address, creds.FullName)
	if err != nil {
		return w.failBeforeCreate(address, creds.FullName, "could not persist account",
			fmt.Errorf("failed to persist account: %w", err))
	}
	w.emit(account.ID, address, creds.FullName, domain.StatusPending, "mailbox address created")

	log := w.logger.With(slog.Int64("account_id", account.ID), slog.String("email", address))

	if err := w.advance(ctx, account.ID, address, creds.FullName,
		domain.StatusCredentialsGenerated, "credentials generated"); err != nil {
		return w.fail(ctx, account.ID, address, creds.FullName, "could not update account", err)
	}

	if err := w.provider.SignUp(ctx, address, creds.Password, creds.FullName); err != nil {
		return w.fail(ctx, account.ID, address, creds.FullName,
			"registration rejected by the auth provider",
			fmt.Errorf("registration failed: %w", err))
	}
	if err := w.advance(ctx, account.ID, address, creds.FullName,
		domain.StatusVerificationLinkSent, "registration accepted, verification email pending"); err != nil {
		return w.fail(ctx, account.ID, address, creds.FullName, "could not update account", err)
	}

	link, err := w.pollForLink(ctx, log, address)
	if err != nil {
		return w.fail(ctx, account.ID, address, creds.FullName,
			"no verification email arrived in time", err)
	}
	log.Info("verification link found", slog.String("link", link))

	// Record the link and the stage move together so a crash between the
	// two can't leave a link on a stale status.
	err = w.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().UpdateStatus(ctx, account.ID, domain.StatusEmailReceived); err != nil {
			return err
		}
		return tx.Accounts().SetVerificationLink(ctx, account.ID, link)
	})
	if err != nil {
		return w.fail(ctx, account.ID, address, creds.FullName, "could not record verification link",
			fmt.Errorf("failed to record verification link: %w", err))
	}
	w.emit(account.ID, address, creds.FullName, domain.StatusEmailReceived, "verification email received")

	accessToken, refreshToken, err := w.verify(ctx, log, link)
	if err != nil {
		return w.fail(ctx, account.ID, address, creds.FullName,
			"verification did not yield session tokens", err)
	}

	var expiresAt *time.Time
	if claims, err := jwtx.Peek(accessToken); err == nil && !claims.ExpiresAt.IsZero() {
		t := claims.ExpiresAt
		expiresAt = &t
	}

	if err := w.store.Accounts().MarkVerified(ctx, account.ID, accessToken, refreshToken, expiresAt); err != nil {
		return w.fail(ctx, account.ID, address, creds.FullName, "could not persist session tokens",
			fmt.Errorf("failed to persist tokens: %w", err))
	}
	w.emit(account.ID, address, creds.FullName, domain.StatusVerified, "account verified, session tokens captured")
	log.Info("signup verified")

	return account.ID, nil
}

// advance persists a non-terminal status move and emits its event.
func (w *Worker) advance(ctx context.Context, id int64, email, fullName string, status domain.Status, message string) error {
	if err := w.store.Accounts().UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("failed to move account to %s: %w", status, err)
	}
	w.emit(id, email, fullName, status, message)
	return nil
}

// pollForLink lists the mailbox on a fixed interval until a verification
// link turns up or the polling window closes. Listing errors are transient
// here; the loop keeps going until its own deadline.
func (w *Worker) pollForLink(ctx context.Context, log *slog.Logger, address string) (string, error) {
	deadline := time.Now().Add(w.cfg.PollTimeout)

	for {
		messages, err := w.mailbox.ListMessages(ctx, address)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("mailbox polling cancelled: %w", ctx.Err())
			}
			log.Warn("mailbox listing failed, will retry", slog.Any("error", err))
		}

		for _, msg := range messages {
			if link := w.linkFromMessage(ctx, log, msg); link != "" {
				return link, nil
			}
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("no verification email within %s", w.cfg.PollTimeout)
		}
		if err := sleep(ctx, w.cfg.PollInterval); err != nil {
			return "", fmt.Errorf("mailbox polling cancelled: %w", err)
		}
	}
}

// linkFromMessage runs the extraction ladder over one message. Indirect
// candidates are treated as redirect wrappers and resolved; a wrapper that
// doesn't resolve to a verify URL is skipped, not fatal.
func (w *Worker) linkFromMessage(ctx context.Context, log *slog.Logger, msg mailbox.Message) string {
	for _, candidate := range w.extractor.Candidates(msg.Body) {
		if candidate.Direct {
			return candidate.URL
		}

		resolved, err := w.provider.ResolveRedirect(ctx, candidate.URL)
		if err != nil {
			log.Warn("redirect wrapper resolution failed",
				slog.String("url", candidate.URL), slog.Any("error", err))
			continue
		}
		if resolved != "" && w.extractor.IsVerifyURL(resolved) {
			return resolved
		}
	}
	return ""
}

// verify fetches the verification link with fixed retries and extracts the
// session token pair from the redirect target.
func (w *Worker) verify(ctx context.Context, log *slog.Logger, link string) (string, string, error) {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.VerifyAttempts; attempt++ {
		target, err := w.provider.FetchVerification(ctx, link)
		if err == nil {
			accessToken, refreshToken, err := ExtractTokens(target)
			if err == nil {
				return accessToken, refreshToken, nil
			}
			// The redirect landed but carried no tokens. The link may be
			// single-use, so retrying rarely helps, but the attempt budget
			// is small and the source behavior varies.
			lastErr = err
		} else {
			lastErr = err
		}

		log.Warn("verification fetch failed",
			slog.Int("attempt", attempt), slog.Any("error", lastErr))

		if attempt < w.cfg.VerifyAttempts {
			if err := sleep(ctx, w.cfg.VerifyBackoff); err != nil {
				return "", "", fmt.Errorf("verification cancelled: %w", err)
			}
		}
	}
	return "", "", fmt.Errorf("verification failed after %d attempts: %w", w.cfg.VerifyAttempts, lastErr)
}

// fail marks the account failed, records the full diagnostic and emits the
// terminal event. The broadcast message stays short; the detail is only
// readable from the store. An already-terminal account is left alone.
func (w *Worker) fail(ctx context.Context, id int64, email, fullName, summary string, cause error) (int64, error) {
	w.logger.Error("signup attempt failed",
		slog.Int64("account_id", id), slog.String("email", email), slog.Any("error", cause))

	if err := w.store.Accounts().MarkFailed(ctx, id, cause.Error()); err != nil &&
		!errors.Is(err, store.ErrIllegalTransition) {
		w.logger.Error("failed to record failure",
			slog.Int64("account_id", id), slog.Any("error", err))
	}

	w.emit(id, email, fullName, domain.StatusFailed, summary)
	return id, cause
}

// failBeforeCreate emits the terminal event for attempts that died before an
// account row existed. There is nothing to persist.
func (w *Worker) failBeforeCreate(email, fullName, summary string, cause error) (int64, error) {
	w.logger.Error("signup attempt failed before account creation",
		slog.String("email", email), slog.Any("error", cause))
	w.emit(domain.SentinelAccountID, email, fullName, domain.StatusFailed, summary)
	return domain.SentinelAccountID, cause
}

func (w *Worker) emit(id int64, email, fullName string, status domain.Status, message string) {
	w.sink.Publish(domain.ProgressEvent{
		AccountID: id,
		Email:     email,
		FullName:  fullName,
		Status:    status,
		Message:   message,
		EmittedAt: time.Now().UTC(),
	})
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
