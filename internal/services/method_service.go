// Package services – MethodService
//
// This file implements MethodService, which owns the global ordered list of
// communication methods. Sequences are kept unique and contiguous (1..n):
// new methods append at the end, deletes compact the list, and moves swap a
// method with its neighbour inside a transaction.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/repo"
)

// Move directions accepted by MethodService.Move.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// MethodInput carries the fields accepted when creating a method. A nil
// Sequence appends the method after the current last one.
type MethodInput struct {
	Name        string
	Description string
	Sequence    *int
	Mandatory   bool
}

// MethodPatch carries a partial update; nil fields are left untouched.
type MethodPatch struct {
	Name        *string
	Description *string
	Sequence    *int
	Mandatory   *bool
}

// MethodService manages communication methods and their ordering.
type MethodService struct {
	DB *gorm.DB
}

// List returns every method ordered by sequence.
func (s *MethodService) List(ctx context.Context) ([]domain.CommunicationMethod, error) {
	out, err := repo.ListMethods(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.CommunicationMethod{}
	}
	return out, nil
}

// createAttempts bounds how often an append is retried after losing the
// next sequence to a concurrent create.
const createAttempts = 3

// Create inserts a method. An explicit sequence must be the next free
// position; anything lower collides with an existing method. Appends that
// race another create are retried against the new end of the list.
func (s *MethodService) Create(ctx context.Context, in MethodInput) (*domain.CommunicationMethod, error) {
	name := collapseSpaces(in.Name)
	if name == "" {
		return nil, ErrMethodNameRequired
	}

	for attempt := 1; ; attempt++ {
		m, err := s.create(ctx, name, in)
		if !errors.Is(err, repo.ErrDuplicate) {
			return m, err
		}
		if in.Sequence != nil || attempt == createAttempts {
			return nil, ErrSequenceTaken
		}
	}
}

func (s *MethodService) create(ctx context.Context, name string, in MethodInput) (*domain.CommunicationMethod, error) {
	m := &domain.CommunicationMethod{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Mandatory:   in.Mandatory,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		top, err := repo.MaxMethodSequence(ctx, tx)
		if err != nil {
			return err
		}
		m.Sequence = top + 1
		if in.Sequence != nil {
			switch seq := *in.Sequence; {
			case seq < 1 || seq > top+1:
				return ErrInvalidSequence
			case seq <= top:
				return ErrSequenceTaken
			}
		}
		return repo.CreateMethod(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Update applies patch. Changing the sequence to one held by another method
// fails with ErrSequenceTaken; use Move to reorder.
func (s *MethodService) Update(ctx context.Context, id string, patch MethodPatch) (*domain.CommunicationMethod, error) {
	var out *domain.CommunicationMethod
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.GetMethod(ctx, tx, id)
		if err != nil {
			return err
		}

		fields := map[string]any{}
		if patch.Name != nil {
			name := collapseSpaces(*patch.Name)
			if name == "" {
				return ErrMethodNameRequired
			}
			fields["name"] = name
		}
		if patch.Description != nil {
			fields["description"] = strings.TrimSpace(*patch.Description)
		}
		if patch.Mandatory != nil {
			fields["mandatory"] = *patch.Mandatory
		}
		if patch.Sequence != nil && *patch.Sequence != cur.Sequence {
			seq := *patch.Sequence
			if seq < 1 {
				return ErrInvalidSequence
			}
			holder, err := repo.GetMethodBySequence(ctx, tx, seq)
			switch {
			case err == nil && holder.ID != cur.ID:
				return ErrSequenceTaken
			case errors.Is(err, gorm.ErrRecordNotFound):
				// free slot beyond the end would open a gap
				return ErrInvalidSequence
			case err != nil:
				return err
			}
		}

		if len(fields) > 0 {
			if err := repo.UpdateMethod(ctx, tx, id, fields); err != nil {
				return err
			}
		}
		out, err = repo.GetMethod(ctx, tx, id)
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMethodNotFound
	}
	return out, err
}

// Delete removes a method and compacts the sequences after it. Log entries
// that reference the method are kept.
func (s *MethodService) Delete(ctx context.Context, id string) error {
	err := repo.DeleteMethodAndCompact(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMethodNotFound
	}
	return err
}

// Move swaps a method with its neighbour in the given direction and returns
// the full list in its new order. Moving the first method up or the last
// method down fails with ErrCannotMove.
func (s *MethodService) Move(ctx context.Context, id, direction string) ([]domain.CommunicationMethod, error) {
	var delta int
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case DirectionUp:
		delta = -1
	case DirectionDown:
		delta = 1
	default:
		return nil, ErrInvalidDirection
	}

	var out []domain.CommunicationMethod
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.GetMethod(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMethodNotFound
			}
			return err
		}
		neighbour, err := repo.GetMethodBySequence(ctx, tx, m.Sequence+delta)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCannotMove
			}
			return err
		}
		if err := repo.SwapMethodSequences(ctx, tx, m, neighbour); err != nil {
			return err
		}
		out, err = repo.ListMethods(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
