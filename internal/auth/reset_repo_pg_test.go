package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGResetRepoConsumeReturnsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGResetRepo{DB: db}
	expires := time.Now().Add(time.Hour)
	created := time.Now().Add(-time.Minute)

	rows := sqlmock.NewRows([]string{"id", "email", "token", "expires_at", "created_at"}).
		AddRow("rt-1", "ada@example.com", "tok-abc", expires, created)
	mock.ExpectQuery("DELETE FROM password_reset_tokens").
		WithArgs("tok-abc").
		WillReturnRows(rows)

	got, err := repo.Consume(context.Background(), "tok-abc")
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got.Email != "ada@example.com" || got.ID != "rt-1" {
		t.Fatalf("unexpected token: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGResetRepoConsumeUnknownToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGResetRepo{DB: db}
	mock.ExpectQuery("DELETE FROM password_reset_tokens").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "token", "expires_at", "created_at"}))

	if _, err := repo.Consume(context.Background(), "nope"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestPGResetRepoConsumeExpiredTokenStillDeleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGResetRepo{DB: db}
	rows := sqlmock.NewRows([]string{"id", "email", "token", "expires_at", "created_at"}).
		AddRow("rt-2", "ada@example.com", "tok-old", time.Now().Add(-time.Minute), time.Now().Add(-2*time.Hour))
	mock.ExpectQuery("DELETE FROM password_reset_tokens").
		WithArgs("tok-old").
		WillReturnRows(rows)

	if _, err := repo.Consume(context.Background(), "tok-old"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}
