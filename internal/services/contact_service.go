// Package services – ContactService
//
// This file implements the ContactService, which exposes the domain
// operations of the contact manager: listing, creating, editing, deleting,
// and favorite flagging. It normalizes and validates input (trimmed non-empty
// name, '@' in non-empty e-mails) so that nothing below this layer needs to
// re-check fields, then delegates persistence to the contact repository.
//
// Service-level errors (e.g., ErrEmptyName, ErrInvalidEmail) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-contacts-backend/internal/domain"
	"github.com/tbourn/go-contacts-backend/internal/repo"
)

// ContactRepo defines the repository contract required by ContactService.
// Implementations are responsible for persistence of contact rows.
type ContactRepo interface {
	// CreateContact inserts a new contact with favorite=0 and a fresh timestamp.
	CreateContact(ctx context.Context, db *gorm.DB, name string, phone, email *string) (*domain.Contact, error)

	// ListContacts returns all contacts ordered newest first.
	ListContacts(ctx context.Context, db *gorm.DB) ([]domain.Contact, error)

	// GetContact fetches a contact by id (ErrNotFound when missing).
	GetContact(ctx context.Context, db *gorm.DB, id int64) (*domain.Contact, error)

	// UpdateContact overwrites name/phone/email; missing id is a silent no-op.
	UpdateContact(ctx context.Context, db *gorm.DB, id int64, name string, phone, email *string) error

	// SetFavorite overwrites the favorite column; missing id is a silent no-op.
	SetFavorite(ctx context.Context, db *gorm.DB, id int64, value int) error

	// DeleteContact removes a contact; missing id is a silent no-op.
	DeleteContact(ctx context.Context, db *gorm.DB, id int64) error
}

// ContactService provides contact-level operations. It owns field
// normalization rules and defers everything else to the repository.
type ContactService struct {
	// DB is the GORM handle used for persistence, injected ready at startup.
	DB *gorm.DB
	// Repo is the contact repository used by this service.
	Repo ContactRepo
}

// NewContactService constructs a ContactService bound to the given handle
// and repository.
func NewContactService(db *gorm.DB, r ContactRepo) *ContactService {
	return &ContactService{DB: db, Repo: r}
}

// List returns all contacts, newest first.
func (s *ContactService) List(ctx context.Context) ([]domain.Contact, error) {
	return s.Repo.ListContacts(ctx, s.DB)
}

// Add validates and inserts a new contact, returning the stored row with its
// assigned id. Name must be non-empty after trimming; a non-empty e-mail must
// contain '@'. Trimmed-empty phone and e-mail values are stored as NULL.
func (s *ContactService) Add(ctx context.Context, name, phone, email string) (*domain.Contact, error) {
	name, phonePtr, emailPtr, err := normalizeFields(name, phone, email)
	if err != nil {
		return nil, err
	}
	return s.Repo.CreateContact(ctx, s.DB, name, phonePtr, emailPtr)
}

// Edit validates and overwrites name/phone/email of the contact identified
// by id. Editing an id that matches no row is a silent success: the update
// affects zero rows and no error is reported.
func (s *ContactService) Edit(ctx context.Context, id int64, name, phone, email string) error {
	name, phonePtr, emailPtr, err := normalizeFields(name, phone, email)
	if err != nil {
		return err
	}
	return s.Repo.UpdateContact(ctx, s.DB, id, name, phonePtr, emailPtr)
}

// SetFavorite overwrites the favorite flag with an absolute value in {0,1}.
func (s *ContactService) SetFavorite(ctx context.Context, id int64, value int) error {
	if value != 0 && value != 1 {
		return ErrInvalidFavorite
	}
	return s.Repo.SetFavorite(ctx, s.DB, id, value)
}

// ToggleFavorite flips the favorite flag of an existing contact (0 ↔ 1) and
// returns the new value. Unlike plain edits, toggling must read the current
// row first, so a missing id surfaces as ErrContactNotFound.
func (s *ContactService) ToggleFavorite(ctx context.Context, id int64) (int, error) {
	c, err := s.Repo.GetContact(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return 0, ErrContactNotFound
		}
		return 0, err
	}
	next := 1
	if c.Favorite == 1 {
		next = 0
	}
	if err := s.Repo.SetFavorite(ctx, s.DB, id, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Remove deletes the contact identified by id. Removing a non-existent id
// is a silent success.
func (s *ContactService) Remove(ctx context.Context, id int64) error {
	return s.Repo.DeleteContact(ctx, s.DB, id)
}

// normalizeFields trims all three fields and applies the validation rules
// the original form layer enforced: name must remain non-empty, and a
// non-empty e-mail must contain '@'. Empty phone/email become nil so they
// are stored as NULL.
func normalizeFields(name, phone, email string) (string, *string, *string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, nil, ErrEmptyName
	}
	email = strings.TrimSpace(email)
	if email != "" && !strings.Contains(email, "@") {
		return "", nil, nil, ErrInvalidEmail
	}
	return name, optional(strings.TrimSpace(phone)), optional(email), nil
}

// optional maps "" to nil so empty strings persist as NULL.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isNotFound treats repo-level not found sentinels as "not found" in a
// driver-agnostic way. It also checks gorm.ErrRecordNotFound for safety.
func isNotFound(err error) bool {
	if errors.Is(err, repo.ErrNotFound) {
		return true
	}
	return errors.Is(err, gorm.ErrRecordNotFound)
}
