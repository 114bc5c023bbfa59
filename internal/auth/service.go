// Package auth bridges CRM contacts into application sessions: local
// credential login, registration, password reset and the Microsoft OAuth flow.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"sds-backend/internal/crm"
	sharedauth "sds-backend/internal/shared/auth"
	"sds-backend/internal/shared/telemetry"
)

const (
	bcryptCost    = 12
	resetTokenTTL = time.Hour
)

var (
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNoAccount indicates no CRM contact exists for the email.
	ErrNoAccount = errors.New("no account for this email")
	// ErrCredentialExists indicates the contact already registered a password.
	ErrCredentialExists = errors.New("account already registered")
)

// bcryptFormat matches the modular crypt prefix of bcrypt hashes. Anything
// else stored on a contact is treated as a legacy plaintext credential.
var bcryptFormat = regexp.MustCompile(`^\$2[aby]\$`)

// CRMClient is the slice of the CRM surface the auth service needs.
type CRMClient interface {
	GetContactByEmail(ctx context.Context, email string) (crm.Contact, error)
	UpdatePassword(ctx context.Context, contactID, credential string) error
}

// Service implements credential flows against the CRM contact store.
type Service struct {
	CRM    CRMClient
	Resets ResetTokenRepo

	RoleFields     []string
	JWTTTL         time.Duration
	AllowPlaintext bool
	WebURL         string
}

// Login verifies the password against the contact's stored credential and
// issues a session token. Legacy plaintext credentials are accepted only when
// the plaintext gate is open, and every such login is logged.
func (s *Service) Login(ctx context.Context, email, password string) (string, sharedauth.Claims, error) {
	if email == "" || password == "" {
		return "", sharedauth.Claims{}, ErrInvalidCredentials
	}

	contact, err := s.CRM.GetContactByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return "", sharedauth.Claims{}, ErrInvalidCredentials
		}
		return "", sharedauth.Claims{}, err
	}
	if contact.Password == "" {
		return "", sharedauth.Claims{}, ErrInvalidCredentials
	}

	if bcryptFormat.MatchString(contact.Password) {
		if bcrypt.CompareHashAndPassword([]byte(contact.Password), []byte(password)) != nil {
			return "", sharedauth.Claims{}, ErrInvalidCredentials
		}
	} else {
		if !s.AllowPlaintext {
			return "", sharedauth.Claims{}, ErrInvalidCredentials
		}
		if subtle.ConstantTimeCompare([]byte(contact.Password), []byte(password)) != 1 {
			return "", sharedauth.Claims{}, ErrInvalidCredentials
		}
		telemetry.Warn("auth.plaintext_credential", map[string]any{"contact_id": contact.ID})
	}

	return s.issueSession(contact)
}

// Register sets an initial password on an existing contact and signs the
// caller in. Contacts are provisioned in the CRM; registration never creates
// one.
func (s *Service) Register(ctx context.Context, email, password string) (string, sharedauth.Claims, error) {
	if email == "" || len(password) < 8 {
		return "", sharedauth.Claims{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidCredentials)
	}

	contact, err := s.CRM.GetContactByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return "", sharedauth.Claims{}, ErrNoAccount
		}
		return "", sharedauth.Claims{}, err
	}
	if contact.Password != "" {
		return "", sharedauth.Claims{}, ErrCredentialExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", sharedauth.Claims{}, err
	}
	if err := s.CRM.UpdatePassword(ctx, contact.ID, string(hash)); err != nil {
		return "", sharedauth.Claims{}, err
	}
	return s.issueSession(contact)
}

// ForgotPassword issues a reset token when the email matches a contact. It
// reveals nothing to the caller either way; the handler answer is constant.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return nil
	}

	contact, err := s.CRM.GetContactByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := randomToken()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	reset := ResetToken{
		ID:        uuid.NewString(),
		Email:     contact.Email,
		Token:     token,
		ExpiresAt: now.Add(resetTokenTTL),
		CreatedAt: now,
	}
	if err := s.Resets.Create(ctx, reset); err != nil {
		return err
	}

	// Mail delivery is not wired up; surface the link through the logs.
	telemetry.Info("auth.reset_link_issued", map[string]any{
		"contact_id": contact.ID,
		"reset_link": fmt.Sprintf("%s/reset-password?token=%s", s.WebURL, token),
		"expires_at": reset.ExpiresAt.Format(time.RFC3339),
	})
	return nil
}

// ResetPassword redeems a reset token and stores the new credential. Tokens
// are single use.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidCredentials)
	}

	reset, err := s.Resets.Consume(ctx, token)
	if err != nil {
		return err
	}

	contact, err := s.CRM.GetContactByEmail(ctx, reset.Email)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}
	return s.CRM.UpdatePassword(ctx, contact.ID, string(hash))
}

// issueSession signs a JWT carrying the contact's identity and derived roles.
func (s *Service) issueSession(contact crm.Contact) (string, sharedauth.Claims, error) {
	claims := sharedauth.Claims{
		Sub:         contact.ID,
		Email:       contact.Email,
		Roles:       crm.MapRoles(contact, s.RoleFields),
		ContactID:   contact.ID,
		AccountID:   contact.AccountID,
		CompanyCode: contact.AccountNumber,
		FirstName:   contact.FirstName,
		LastName:    contact.LastName,
	}

	ttl := s.JWTTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	token, err := sharedauth.SignJWT(claims, ttl)
	if err != nil {
		return "", sharedauth.Claims{}, err
	}
	return token, claims, nil
}

func randomToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
