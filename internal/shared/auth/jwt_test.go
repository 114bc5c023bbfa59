package auth

import (
	"testing"
	"time"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	claims := Claims{
		Sub:         "contact-1",
		Email:       "user@example.com",
		Roles:       []string{"Editor", "Viewer"},
		ContactID:   "contact-1",
		AccountID:   "account-9",
		CompanyCode: "ACME",
		FirstName:   "Ada",
		LastName:    "Lovelace",
	}

	token, err := SignJWT(claims, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	got, err := VerifyJWT(token)
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}
	if got.Sub != claims.Sub || got.Email != claims.Email {
		t.Fatalf("claims mismatch: got %+v", got)
	}
	if got.CompanyCode != "ACME" || got.AccountID != "account-9" {
		t.Fatalf("org claims mismatch: got %+v", got)
	}
	if !got.HasRole("Editor") {
		t.Fatalf("expected Editor role, got %v", got.Roles)
	}
	if got.HasRole("Admin") {
		t.Fatalf("did not expect Admin role, got %v", got.Roles)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	claims := Claims{
		Sub: "contact-1",
		Exp: time.Now().UTC().Add(-time.Minute).Unix(),
	}
	token, err := SignJWT(claims, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	if _, err := VerifyJWT(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	token, err := SignJWT(Claims{Sub: "contact-1"}, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if _, err := VerifyJWT(tampered); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
}
