package repository

import (
	"context"

	"notely-server/internal/domain"
)

// NoteRepository persists notes. Implementations assign the note id and both
// timestamps, and return domain.ErrNotFound for unknown ids. FindByOwner
// orders by UpdatedAt descending; ties keep insertion order.
type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) (*domain.Note, error)
	FindByID(ctx context.Context, id string) (*domain.Note, error)
	FindByOwner(ctx context.Context, userID string) ([]*domain.Note, error)
	Update(ctx context.Context, id string, patch domain.NotePatch) (*domain.Note, error)
	Delete(ctx context.Context, id string) error
	SetArchived(ctx context.Context, id string, archived bool) (*domain.Note, error)
}
