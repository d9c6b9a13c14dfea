package service

import (
	"context"

	"notely-server/internal/domain"
	"notely-server/internal/repository"
)

// NoteService validates note content and delegates persistence. It does not
// check ownership; callers decide who may see a note.
type NoteService struct {
	repo repository.NoteRepository
}

func NewNoteService(repo repository.NoteRepository) *NoteService {
	return &NoteService{
		repo: repo,
	}
}

func (s *NoteService) Create(ctx context.Context, ownerID, title, content string) (*domain.Note, error) {
	if err := requireText("title", title); err != nil {
		return nil, err
	}
	if err := requireText("content", content); err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, &domain.Note{
		UserID:  ownerID,
		Title:   title,
		Content: content,
	})
}

func (s *NoteService) GetByID(ctx context.Context, id string) (*domain.Note, error) {
	return s.repo.FindByID(ctx, id)
}

// ListByOwner returns the owner's notes, most recently modified first.
func (s *NoteService) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Note, error) {
	return s.repo.FindByOwner(ctx, ownerID)
}

// Update applies the supplied fields and leaves the rest unchanged.
func (s *NoteService) Update(ctx context.Context, id string, patch domain.NotePatch) (*domain.Note, error) {
	if err := requireOptionalText("title", patch.Title); err != nil {
		return nil, err
	}
	if err := requireOptionalText("content", patch.Content); err != nil {
		return nil, err
	}

	return s.repo.Update(ctx, id, patch)
}

func (s *NoteService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// SetArchived writes the flag even when it is unchanged, so updatedAt always
// moves forward.
func (s *NoteService) SetArchived(ctx context.Context, id string, archived bool) (*domain.Note, error) {
	return s.repo.SetArchived(ctx, id, archived)
}
