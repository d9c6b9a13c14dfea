package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"notely-server/internal/domain"

	"github.com/google/uuid"
)

type memoryNote struct {
	note domain.Note
	seq  int64
}

// MemoryStore keeps users and notes in process memory. It backs the
// "memory" driver and the service and handler tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*domain.User
	extIDs  map[string]string
	notes   map[string]*memoryNote
	nextSeq int64
	now     func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now as the source of note and user timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		users:  make(map[string]*domain.User),
		extIDs: make(map[string]string),
		notes:  make(map[string]*memoryNote),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Notes() NoteRepository {
	return &memoryNoteRepository{store: s}
}

func (s *MemoryStore) Users() UserRepository {
	return &memoryUserRepository{store: s}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

type memoryNoteRepository struct {
	store *MemoryStore
}

func (r *memoryNoteRepository) Create(ctx context.Context, note *domain.Note) (*domain.Note, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[note.UserID]; !ok {
		return nil, fmt.Errorf("owner %s: %w", note.UserID, domain.ErrNotFound)
	}

	now := s.now()
	s.nextSeq++
	stored := &memoryNote{
		note: domain.Note{
			ID:         uuid.New().String(),
			UserID:     note.UserID,
			Title:      note.Title,
			Content:    note.Content,
			IsArchived: false,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		seq: s.nextSeq,
	}
	s.notes[stored.note.ID] = stored

	created := stored.note
	return &created, nil
}

func (r *memoryNoteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	note := stored.note
	return &note, nil
}

func (r *memoryNoteRepository) FindByOwner(ctx context.Context, userID string) ([]*domain.Note, error) {
	s := r.store
	s.mu.RLock()
	owned := make([]*memoryNote, 0)
	for _, n := range s.notes {
		if n.note.UserID == userID {
			owned = append(owned, n)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if !a.note.UpdatedAt.Equal(b.note.UpdatedAt) {
			return a.note.UpdatedAt.After(b.note.UpdatedAt)
		}
		return a.seq < b.seq
	})

	notes := make([]*domain.Note, 0, len(owned))
	for _, n := range owned {
		note := n.note
		notes = append(notes, &note)
	}
	return notes, nil
}

func (r *memoryNoteRepository) Update(ctx context.Context, id string, patch domain.NotePatch) (*domain.Note, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	if patch.Title != nil {
		stored.note.Title = *patch.Title
	}
	if patch.Content != nil {
		stored.note.Content = *patch.Content
	}
	stored.note.UpdatedAt = s.now()

	note := stored.note
	return &note, nil
}

func (r *memoryNoteRepository) Delete(ctx context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

func (r *memoryNoteRepository) SetArchived(ctx context.Context, id string, archived bool) (*domain.Note, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	stored.note.IsArchived = archived
	stored.note.UpdatedAt = s.now()

	note := stored.note
	return &note, nil
}

type memoryUserRepository struct {
	store *MemoryStore
}

func (r *memoryUserRepository) Create(ctx context.Context, user *domain.NewUser) (*domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.extIDs[user.ExternalID]; taken {
		return nil, domain.ErrAlreadyExists
	}

	now := s.now()
	stored := &domain.User{
		ID:         uuid.New().String(),
		ExternalID: user.ExternalID,
		Email:      user.Email,
		Name:       user.Name,
		AvatarURL:  user.AvatarURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.users[stored.ID] = stored
	s.extIDs[stored.ExternalID] = stored.ID

	created := *stored
	return &created, nil
}

func (r *memoryUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	user := *stored
	return &user, nil
}

func (r *memoryUserRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.extIDs[externalID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	user := *s.users[id]
	return &user, nil
}

func (r *memoryUserRepository) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	if patch.Email != nil {
		stored.Email = *patch.Email
	}
	if patch.Name != nil {
		stored.Name = *patch.Name
	}
	if patch.AvatarURL != nil {
		stored.AvatarURL = *patch.AvatarURL
	}
	stored.UpdatedAt = s.now()

	user := *stored
	return &user, nil
}

func (r *memoryUserRepository) Delete(ctx context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}

	for noteID, n := range s.notes {
		if n.note.UserID == id {
			delete(s.notes, noteID)
		}
	}
	delete(s.extIDs, stored.ExternalID)
	delete(s.users, id)
	return nil
}
