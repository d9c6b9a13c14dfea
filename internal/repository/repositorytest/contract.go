// Package repositorytest holds the behaviour every repository adapter must
// share. Adapter tests call RunNoteRepository and RunUserRepository with a
// factory returning a fresh, empty store.
package repositorytest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"notely-server/internal/domain"
	"notely-server/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type StoreFactory func(t *testing.T) repository.Store

func createUser(t *testing.T, store repository.Store, externalID string) *domain.User {
	t.Helper()
	user, err := store.Users().Create(context.Background(), &domain.NewUser{
		ExternalID: externalID,
		Email:      externalID + "@example.com",
	})
	require.NoError(t, err)
	return user
}

func createNote(t *testing.T, store repository.Store, ownerID, title, content string) *domain.Note {
	t.Helper()
	note, err := store.Notes().Create(context.Background(), &domain.Note{
		UserID:  ownerID,
		Title:   title,
		Content: content,
	})
	require.NoError(t, err)
	return note
}

func strPtr(s string) *string {
	return &s
}

// RunNoteRepository exercises the NoteRepository contract.
func RunNoteRepository(t *testing.T, newStore StoreFactory) {
	ctx := context.Background()

	t.Run("create assigns id and timestamps", func(t *testing.T) {
		store := newStore(t)
		owner := createUser(t, store, "ext-create")

		note := createNote(t, store, owner.ID, "Shopping", "milk, eggs")

		assert.NotEmpty(t, note.ID)
		assert.Equal(t, owner.ID, note.UserID)
		assert.Equal(t, "Shopping", note.Title)
		assert.Equal(t, "milk, eggs", note.Content)
		assert.False(t, note.IsArchived)
		assert.False(t, note.CreatedAt.IsZero())
		assert.False(t, note.UpdatedAt.IsZero())
	})

	t.Run("create for unknown owner", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Notes().Create(ctx, &domain.Note{UserID: uuid.New().String(), Title: "t", Content: "c"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("find by id", func(t *testing.T) {
		store := newStore(t)
		owner := createUser(t, store, "ext-find")
		created := createNote(t, store, owner.ID, "title", "content")

		found, err := store.Notes().FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, owner.ID, found.UserID)

		_, err = store.Notes().FindByID(ctx, uuid.New().String())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("find by owner is scoped and ordered", func(t *testing.T) {
		store := newStore(t)
		alice := createUser(t, store, "ext-alice")
		bob := createUser(t, store, "ext-bob")

		first := createNote(t, store, alice.ID, "first", "1")
		createNote(t, store, alice.ID, "second", "2")
		createNote(t, store, alice.ID, "third", "3")
		createNote(t, store, bob.ID, "bob's", "b")

		_, err := store.Notes().Update(ctx, first.ID, domain.NotePatch{Content: strPtr("1 edited")})
		require.NoError(t, err)

		notes, err := store.Notes().FindByOwner(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, notes, 3)

		assert.Equal(t, first.ID, notes[0].ID)
		for i, n := range notes {
			assert.Equal(t, alice.ID, n.UserID)
			if i > 0 {
				assert.False(t, n.UpdatedAt.After(notes[i-1].UpdatedAt), "notes must be ordered by updatedAt descending")
			}
		}

		empty, err := store.Notes().FindByOwner(ctx, uuid.New().String())
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("update is partial and keeps owner", func(t *testing.T) {
		store := newStore(t)
		owner := createUser(t, store, "ext-update")
		created := createNote(t, store, owner.ID, "old title", "old content")

		updated, err := store.Notes().Update(ctx, created.ID, domain.NotePatch{Title: strPtr("new title")})
		require.NoError(t, err)

		assert.Equal(t, "new title", updated.Title)
		assert.Equal(t, "old content", updated.Content)
		assert.Equal(t, owner.ID, updated.UserID)
		assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
		assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

		_, err = store.Notes().Update(ctx, uuid.New().String(), domain.NotePatch{Title: strPtr("x")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("set archived toggles flag", func(t *testing.T) {
		store := newStore(t)
		owner := createUser(t, store, "ext-archive")
		created := createNote(t, store, owner.ID, "title", "content")

		archived, err := store.Notes().SetArchived(ctx, created.ID, true)
		require.NoError(t, err)
		assert.True(t, archived.IsArchived)
		assert.Equal(t, owner.ID, archived.UserID)

		again, err := store.Notes().SetArchived(ctx, created.ID, true)
		require.NoError(t, err)
		assert.True(t, again.IsArchived)
		assert.False(t, again.UpdatedAt.Before(archived.UpdatedAt))

		restored, err := store.Notes().SetArchived(ctx, created.ID, false)
		require.NoError(t, err)
		assert.False(t, restored.IsArchived)

		_, err = store.Notes().SetArchived(ctx, uuid.New().String(), true)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete removes note", func(t *testing.T) {
		store := newStore(t)
		owner := createUser(t, store, "ext-delete")
		created := createNote(t, store, owner.ID, "title", "content")

		require.NoError(t, store.Notes().Delete(ctx, created.ID))

		_, err := store.Notes().FindByID(ctx, created.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = store.Notes().Delete(ctx, created.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("concurrent creates never collide", func(t *testing.T) {
		store := newStore(t)
		owner := createUser(t, store, "ext-concurrent")

		const n = 20
		ids := make(chan string, n)
		errs := make(chan error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				note, err := store.Notes().Create(ctx, &domain.Note{UserID: owner.ID, Title: "t", Content: "c"})
				if err != nil {
					errs <- err
					return
				}
				ids <- note.ID
			}()
		}
		wg.Wait()
		close(ids)
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}

		seen := make(map[string]bool)
		for id := range ids {
			assert.False(t, seen[id], "duplicate note id %s", id)
			seen[id] = true
		}
		assert.Len(t, seen, n)
	})
}

// RunUserRepository exercises the UserRepository contract.
func RunUserRepository(t *testing.T, newStore StoreFactory) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		store := newStore(t)

		created, err := store.Users().Create(ctx, &domain.NewUser{
			ExternalID: "ext-1",
			Email:      "a@example.com",
			Name:       "Alice",
			AvatarURL:  "https://example.com/a.png",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		byID, err := store.Users().FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "ext-1", byID.ExternalID)
		assert.Equal(t, "Alice", byID.Name)
		assert.Equal(t, "https://example.com/a.png", byID.AvatarURL)

		byExt, err := store.Users().FindByExternalID(ctx, "ext-1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byExt.ID)

		_, err = store.Users().FindByExternalID(ctx, "ext-unknown")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = store.Users().FindByID(ctx, uuid.New().String())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("duplicate external id", func(t *testing.T) {
		store := newStore(t)
		createUser(t, store, "ext-dup")

		_, err := store.Users().Create(ctx, &domain.NewUser{ExternalID: "ext-dup", Email: "other@example.com"})
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists), "want ErrAlreadyExists, got %v", err)
	})

	t.Run("update is partial", func(t *testing.T) {
		store := newStore(t)
		created := createUser(t, store, "ext-upd")

		updated, err := store.Users().Update(ctx, created.ID, domain.UserPatch{Name: strPtr("New Name")})
		require.NoError(t, err)
		assert.Equal(t, "New Name", updated.Name)
		assert.Equal(t, created.Email, updated.Email)
		assert.Equal(t, "ext-upd", updated.ExternalID)

		_, err = store.Users().Update(ctx, uuid.New().String(), domain.UserPatch{Name: strPtr("x")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete cascades to notes", func(t *testing.T) {
		store := newStore(t)
		owner := createUser(t, store, "ext-del")
		note := createNote(t, store, owner.ID, "title", "content")

		require.NoError(t, store.Users().Delete(ctx, owner.ID))

		_, err := store.Users().FindByID(ctx, owner.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = store.Users().FindByExternalID(ctx, "ext-del")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = store.Notes().FindByID(ctx, note.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = store.Users().Delete(ctx, owner.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		recreated := createUser(t, store, "ext-del")
		assert.NotEqual(t, owner.ID, recreated.ID)
	})
}
