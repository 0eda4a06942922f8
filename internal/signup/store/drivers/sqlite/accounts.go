package sqlite

import (
	"context"
	"time"

	"github.com/pixelgrid/signupmill/internal/signup/domain"
	"github.com/pixelgrid/signupmill/internal/signup/store"
)

type accountsRepo struct {
	q dbtx
}

const accountColumns = `id, email, full_name, status, access_token, refresh_token,
	token_expires_at, verification_link, error_log, created_at, updated_at`

func scanAccount(row interface{ Scan(dest ...any) error }) (domain.Account, error) {
	var r accountRow
	err := row.Scan(
		&r.ID, &r.Email, &r.FullName, &r.Status,
		&r.AccessToken, &r.RefreshToken, &r.TokenExpiresAt,
		&r.VerificationLink, &r.ErrorLog, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	return mapAccount(r), nil
}

func (r *accountsRepo) CreateAccount(ctx context.Context, email, fullName string) (domain.Account, error) {
	now := time.Now().UTC()

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (email, full_name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		email, fullName, string(domain.StatusPending), now, now,
	)
	if err != nil {
		return domain.Account{}, mapConstraint(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Account{}, err
	}

	return domain.Account{
		ID:        id,
		Email:     email,
		FullName:  fullName,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id int64) (domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)

	acc, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return acc, nil
}

func (r *accountsRepo) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (r *accountsRepo) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	if status.IsTerminal() {
		// Terminal transitions go through MarkVerified / MarkFailed so the
		// token and diagnostic invariants hold.
		return store.ErrIllegalTransition
	}

	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET status = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('verified', 'failed')`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, id)
}

func (r *accountsRepo) SetVerificationLink(ctx context.Context, id int64, link string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET verification_link = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('verified', 'failed')`,
		link, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, id)
}

func (r *accountsRepo) MarkVerified(ctx context.Context, id int64, accessToken, refreshToken string, tokenExpiresAt *time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET status = 'verified', access_token = ?, refresh_token = ?,
		    token_expires_at = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('verified', 'failed')`,
		accessToken, refreshToken, mapOptionalTime(tokenExpiresAt), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, id)
}

func (r *accountsRepo) MarkFailed(ctx context.Context, id int64, errorLog string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET status = 'failed', error_log = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('verified', 'failed')`,
		errorLog, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, id)
}

func (r *accountsRepo) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM accounts GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

// checkAffected distinguishes a missing row from a terminal row when a
// guarded update matched nothing.
func (r *accountsRepo) checkAffected(ctx context.Context, res interface{ RowsAffected() (int64, error) }, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := r.q.QueryRowContext(ctx,
		`SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&exists); err != nil {
		return mapNotFound(err)
	}
	return store.ErrIllegalTransition
}
