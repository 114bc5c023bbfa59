package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sds-backend/internal/crm"
	sharedauth "sds-backend/internal/shared/auth"
)

// fakeCRM implements CRMClient over an in-memory contact set.
type fakeCRM struct {
	mu       sync.Mutex
	contacts map[string]crm.Contact // keyed by email
}

func newFakeCRM(contacts ...crm.Contact) *fakeCRM {
	f := &fakeCRM{contacts: make(map[string]crm.Contact)}
	for _, c := range contacts {
		f.contacts[c.Email] = c
	}
	return f
}

func (f *fakeCRM) GetContactByEmail(ctx context.Context, email string) (crm.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[email]
	if !ok {
		return crm.Contact{}, crm.ErrNotFound
	}
	return c, nil
}

func (f *fakeCRM) UpdatePassword(ctx context.Context, contactID, credential string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, c := range f.contacts {
		if c.ID == contactID {
			c.Password = credential
			f.contacts[email] = c
			return nil
		}
	}
	return crm.ErrNotFound
}

var testFields = []string{"adminflag", "contributorflag", "accessflag"}

func newAuthService(contacts ...crm.Contact) (*Service, *fakeCRM) {
	fake := newFakeCRM(contacts...)
	svc := &Service{
		CRM:            fake,
		Resets:         NewMemoryResetRepo(),
		RoleFields:     testFields,
		JWTTTL:         time.Hour,
		AllowPlaintext: true,
		WebURL:         "https://sds.example.com",
	}
	return svc, fake
}

func bcryptHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func TestLoginWithBcryptCredential(t *testing.T) {
	svc, _ := newAuthService(crm.Contact{
		ID: "c-1", Email: "ada@example.com", Password: bcryptHash(t, "hunter22"),
		FirstName: "Ada", LastName: "Lovelace",
		AccountID: "a-1", AccountNumber: "ACME",
		Flags: map[string]bool{"adminflag": true},
	})

	token, claims, err := svc.Login(context.Background(), "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatalf("expected session token")
	}
	if claims.CompanyCode != "ACME" || claims.AccountID != "a-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.HasRole("Admin") {
		t.Fatalf("expected admin role, got %v", claims.Roles)
	}

	verified, err := sharedauth.VerifyJWT(token)
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}
	if verified.Sub != "c-1" {
		t.Fatalf("unexpected subject: %s", verified.Sub)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthService(crm.Contact{ID: "c-1", Email: "ada@example.com", Password: bcryptHash(t, "hunter22")})

	if _, _, err := svc.Login(context.Background(), "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthService()
	if _, _, err := svc.Login(context.Background(), "ghost@example.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginLegacyPlaintextCredential(t *testing.T) {
	svc, _ := newAuthService(crm.Contact{ID: "c-1", Email: "bob@example.com", Password: "legacy-pass"})

	if _, _, err := svc.Login(context.Background(), "bob@example.com", "legacy-pass"); err != nil {
		t.Fatalf("expected legacy plaintext login to succeed, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "bob@example.com", "other"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected mismatch to fail, got %v", err)
	}
}

func TestLoginPlaintextGateClosed(t *testing.T) {
	svc, _ := newAuthService(crm.Contact{ID: "c-1", Email: "bob@example.com", Password: "legacy-pass"})
	svc.AllowPlaintext = false

	if _, _, err := svc.Login(context.Background(), "bob@example.com", "legacy-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected plaintext login to be rejected, got %v", err)
	}
}

func TestRegisterHashesCredentialAndSignsIn(t *testing.T) {
	svc, fake := newAuthService(crm.Contact{ID: "c-1", Email: "new@example.com"})

	token, claims, err := svc.Register(context.Background(), "new@example.com", "longenough")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	stored := fake.contacts["new@example.com"].Password
	if !strings.HasPrefix(stored, "$2") {
		t.Fatalf("expected bcrypt credential, got %q", stored)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte("longenough")) != nil {
		t.Fatalf("stored hash does not match password")
	}

	if claims.Sub != "c-1" || claims.Email != "new@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	verified, err := sharedauth.VerifyJWT(token)
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}
	if verified.Sub != "c-1" {
		t.Fatalf("expected token for c-1, got %+v", verified)
	}
}

func TestRegisterConflicts(t *testing.T) {
	svc, _ := newAuthService(crm.Contact{ID: "c-1", Email: "taken@example.com", Password: "anything"})

	if _, _, err := svc.Register(context.Background(), "taken@example.com", "longenough"); !errors.Is(err, ErrCredentialExists) {
		t.Fatalf("expected ErrCredentialExists, got %v", err)
	}
	if _, _, err := svc.Register(context.Background(), "ghost@example.com", "longenough"); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount, got %v", err)
	}
	if _, _, err := svc.Register(context.Background(), "x@example.com", "short"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for short password, got %v", err)
	}
}

func TestForgotPasswordSilentForUnknownEmail(t *testing.T) {
	svc, _ := newAuthService()
	if err := svc.ForgotPassword(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("expected nil for unknown email, got %v", err)
	}
}

func TestResetPasswordFlow(t *testing.T) {
	svc, fake := newAuthService(crm.Contact{ID: "c-1", Email: "ada@example.com", Password: "old"})
	resets := svc.Resets.(*MemoryResetRepo)

	if err := svc.ForgotPassword(context.Background(), "ada@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}

	var token string
	resets.mu.Lock()
	for _, reset := range resets.data {
		token = reset.Token
		if reset.Email != "ada@example.com" {
			resets.mu.Unlock()
			t.Fatalf("token bound to wrong email: %s", reset.Email)
		}
		if len(reset.Token) != 64 {
			resets.mu.Unlock()
			t.Fatalf("expected 64 hex char token, got %d chars", len(reset.Token))
		}
	}
	resets.mu.Unlock()
	if token == "" {
		t.Fatalf("no reset token issued")
	}

	if err := svc.ResetPassword(context.Background(), token, "newpassword"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	stored := fake.contacts["ada@example.com"].Password
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte("newpassword")) != nil {
		t.Fatalf("credential not updated")
	}

	// Tokens are single use.
	if err := svc.ResetPassword(context.Background(), token, "anotherpass"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on reuse, got %v", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	svc, _ := newAuthService(crm.Contact{ID: "c-1", Email: "ada@example.com"})
	resets := svc.Resets.(*MemoryResetRepo)

	expired := ResetToken{
		ID:        "r-1",
		Email:     "ada@example.com",
		Token:     strings.Repeat("ab", 32),
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	if err := resets.Create(context.Background(), expired); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.ResetPassword(context.Background(), expired.Token, "newpassword"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}
