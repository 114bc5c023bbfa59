// Package users exposes the contacts of an account as application users.
// The CRM is the system of record; nothing here touches the database.
package users

import (
	"context"
	"errors"

	"sds-backend/internal/crm"
)

// ErrNotFound indicates the contact does not exist.
var ErrNotFound = errors.New("user not found")

// User is a CRM contact projected for the API, with raw role flags and the
// roles derived from them.
type User struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	AccountID string          `json:"accountId"`
	Flags     map[string]bool `json:"flags"`
	Roles     []string        `json:"roles"`
}

// CRMClient is the slice of the CRM surface the users service needs.
type CRMClient interface {
	ListContactsByAccount(ctx context.Context, accountID string) ([]crm.Contact, error)
	GetContactByID(ctx context.Context, contactID string) (crm.Contact, error)
	UpdateRoleFlags(ctx context.Context, contactID string, flags map[string]bool) error
}

// Service lists account members and manages their role flags.
type Service struct {
	CRM        CRMClient
	RoleFields []string
}

// List returns the users of an account.
func (s *Service) List(ctx context.Context, accountID string) ([]User, error) {
	contacts, err := s.CRM.ListContactsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	out := make([]User, 0, len(contacts))
	for _, contact := range contacts {
		out = append(out, s.toUser(contact))
	}
	return out, nil
}

// UpdateRoles patches a contact's role flags and returns the refreshed user.
// Flags outside the configured role fields are dropped by the CRM client.
func (s *Service) UpdateRoles(ctx context.Context, contactID string, flags map[string]bool) (User, error) {
	if err := s.CRM.UpdateRoleFlags(ctx, contactID, flags); err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}

	contact, err := s.CRM.GetContactByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return s.toUser(contact), nil
}

func (s *Service) toUser(contact crm.Contact) User {
	flags := contact.Flags
	if flags == nil {
		flags = map[string]bool{}
	}
	return User{
		ID:        contact.ID,
		Email:     contact.Email,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		AccountID: contact.AccountID,
		Flags:     flags,
		Roles:     crm.MapRoles(contact, s.RoleFields),
	}
}
