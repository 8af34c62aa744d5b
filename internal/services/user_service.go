// Package services – UserService
//
// This file implements UserService. Users are provisioned exclusively from
// identity-provider webhook events; the API only reads them.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/repo"
	"github.com/tbourn/go-followup-backend/internal/webhook"
)

// UserService lists users and keeps them in sync with the identity provider.
type UserService struct {
	DB *gorm.DB
}

// ListByRole returns users with the given role ("user" or "admin").
func (s *UserService) ListByRole(ctx context.Context, role string) ([]domain.User, error) {
	r := domain.Role(strings.ToLower(strings.TrimSpace(role)))
	if !r.Valid() {
		return nil, ErrInvalidRole
	}
	out, err := repo.ListUsersByRole(ctx, s.DB, r)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.User{}
	}
	return out, nil
}

// Get returns a user by internal id.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return repo.GetUser(ctx, s.DB, id)
}

// ApplyEvent applies an identity webhook event. It reports whether the event
// type was handled; unknown types are ignored without error.
func (s *UserService) ApplyEvent(ctx context.Context, ev webhook.Event) (bool, error) {
	switch ev.Type {
	case webhook.EventUserCreated, webhook.EventUserUpdated:
		u, err := ev.User()
		if err != nil {
			return true, err
		}
		_, err = s.Sync(ctx, u)
		return true, err
	case webhook.EventUserDeleted:
		u, err := ev.User()
		if err != nil {
			return true, err
		}
		return true, s.Remove(ctx, u.ID)
	default:
		return false, nil
	}
}

// Sync creates or refreshes the user described by u. New users get the
// "user" role; an existing user's role is preserved.
func (s *UserService) Sync(ctx context.Context, u webhook.UserData) (*domain.User, error) {
	email := u.PrimaryEmail()
	if email == "" {
		return nil, ErrUserEmailRequired
	}
	return repo.UpsertUserByExternalID(ctx, s.DB, &domain.User{
		ExternalID:      u.ID,
		Email:           email,
		FirstName:       strings.TrimSpace(u.FirstName),
		LastName:        strings.TrimSpace(u.LastName),
		ProfileImageURL: strings.TrimSpace(u.ImageURL),
		Role:            domain.RoleUser,
	})
}

// Remove deletes the user with the given external id. Deleting an unknown
// user is not an error.
func (s *UserService) Remove(ctx context.Context, externalID string) error {
	err := repo.DeleteUserByExternalID(ctx, s.DB, externalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
