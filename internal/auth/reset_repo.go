package auth

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

// ErrTokenInvalid covers unknown, already used and expired reset tokens. The
// three cases are indistinguishable to callers on purpose.
var ErrTokenInvalid = errors.New("invalid or expired reset token")

// ResetToken is a single-use password reset grant.
type ResetToken struct {
	ID        string
	Email     string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ResetTokenRepo persists password reset tokens. Consume must atomically
// remove the token so it can never be redeemed twice.
type ResetTokenRepo interface {
	Create(ctx context.Context, token ResetToken) error
	Consume(ctx context.Context, token string) (ResetToken, error)
}

// PGResetRepo implements ResetTokenRepo using Postgres.
type PGResetRepo struct {
	DB *sql.DB
}

// Create inserts a reset token.
func (r *PGResetRepo) Create(ctx context.Context, token ResetToken) error {
	const query = `
INSERT INTO password_reset_tokens (id, email, token, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.DB.ExecContext(ctx, query, token.ID, token.Email, token.Token, token.ExpiresAt, token.CreatedAt)
	return err
}

// Consume deletes the token row and returns it. The DELETE ... RETURNING keeps
// redemption atomic under concurrent requests.
func (r *PGResetRepo) Consume(ctx context.Context, token string) (ResetToken, error) {
	const query = `
DELETE FROM password_reset_tokens
WHERE token = $1
RETURNING id, email, token, expires_at, created_at`

	var out ResetToken
	err := r.DB.QueryRowContext(ctx, query, token).Scan(&out.ID, &out.Email, &out.Token, &out.ExpiresAt, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ResetToken{}, ErrTokenInvalid
		}
		return ResetToken{}, err
	}
	if time.Now().After(out.ExpiresAt) {
		return ResetToken{}, ErrTokenInvalid
	}
	return out, nil
}

// MemoryResetRepo is an in-memory ResetTokenRepo for development and tests.
type MemoryResetRepo struct {
	mu   sync.Mutex
	data map[string]ResetToken
}

// NewMemoryResetRepo constructs a MemoryResetRepo.
func NewMemoryResetRepo() *MemoryResetRepo {
	return &MemoryResetRepo{data: make(map[string]ResetToken)}
}

// Create stores a reset token.
func (r *MemoryResetRepo) Create(ctx context.Context, token ResetToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[token.Token] = token
	return nil
}

// Consume removes and returns the token.
func (r *MemoryResetRepo) Consume(ctx context.Context, token string) (ResetToken, error) {
	if err := ctx.Err(); err != nil {
		return ResetToken{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out, ok := r.data[token]
	if !ok {
		return ResetToken{}, ErrTokenInvalid
	}
	delete(r.data, token)
	if time.Now().After(out.ExpiresAt) {
		return ResetToken{}, ErrTokenInvalid
	}
	return out, nil
}

var (
	_ ResetTokenRepo = (*PGResetRepo)(nil)
	_ ResetTokenRepo = (*MemoryResetRepo)(nil)
)
