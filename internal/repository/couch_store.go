package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"notely-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
	"github.com/google/uuid"
)

// couchPageSize is the Mango page size used when listing an owner's notes.
var couchPageSize = 500

// couchConflictRetries bounds how often a read-modify-write is restarted
// after losing a revision race.
const couchConflictRetries = 5

const (
	couchTypeNote = "note"
	couchTypeUser = "user"
)

type couchNote struct {
	DocID      string    `json:"_id"`
	Rev        string    `json:"_rev,omitempty"`
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (d *couchNote) toDomain() *domain.Note {
	return &domain.Note{
		ID:         d.ID,
		UserID:     d.UserID,
		Title:      d.Title,
		Content:    d.Content,
		IsArchived: d.IsArchived,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type couchUser struct {
	DocID      string    `json:"_id"`
	Rev        string    `json:"_rev,omitempty"`
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (d *couchUser) toDomain() *domain.User {
	return &domain.User{
		ID:         d.ID,
		ExternalID: d.ExternalID,
		Email:      d.Email,
		Name:       d.Name,
		AvatarURL:  d.AvatarURL,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// couchExternalID reserves an external id. CouchDB rejects a second Put of
// the same document id with 409, which is what keeps external ids unique.
type couchExternalID struct {
	DocID  string `json:"_id"`
	Rev    string `json:"_rev,omitempty"`
	UserID string `json:"user_id"`
}

func noteDocID(id string) string {
	return fmt.Sprintf("note:%s", id)
}

func userDocID(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func externalDocID(externalID string) string {
	return fmt.Sprintf("user_ext:%s", externalID)
}

func isCouchStatus(err error, code int) bool {
	return kivik.HTTPStatus(err) == code
}

// CouchStore keeps users and notes as documents in a single CouchDB database.
type CouchStore struct {
	client *kivik.Client
	db     *kivik.DB
}

// EnsureCouchDB creates dbName when it does not exist yet.
func EnsureCouchDB(ctx context.Context, client *kivik.Client, dbName string) error {
	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := client.CreateDB(ctx, dbName); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	return nil
}

func NewCouchStore(client *kivik.Client, dbName string) *CouchStore {
	return &CouchStore{
		client: client,
		db:     client.DB(dbName),
	}
}

func (s *CouchStore) Notes() NoteRepository {
	return &couchNoteRepository{db: s.db}
}

func (s *CouchStore) Users() UserRepository {
	return &couchUserRepository{db: s.db}
}

func (s *CouchStore) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("couchdb is not reachable")
	}
	return nil
}

func (s *CouchStore) Close() error {
	return s.client.Close()
}

type couchNoteRepository struct {
	db *kivik.DB
}

func (r *couchNoteRepository) get(ctx context.Context, id string) (*couchNote, error) {
	var doc couchNote
	if err := r.db.Get(ctx, noteDocID(id)).ScanDoc(&doc); err != nil {
		if isCouchStatus(err, http.StatusNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return &doc, nil
}

func (r *couchNoteRepository) put(ctx context.Context, doc *couchNote) error {
	rev, err := r.db.Put(ctx, doc.DocID, doc)
	if err != nil {
		return err
	}
	doc.Rev = rev
	return nil
}

// mutate applies change to the latest revision of the note and writes it
// back. A write rejected with 409 starts over from a fresh read, so the last
// writer wins instead of failing.
func (r *couchNoteRepository) mutate(ctx context.Context, id, op string, change func(doc *couchNote)) (*domain.Note, error) {
	for attempt := 0; ; attempt++ {
		doc, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}

		change(doc)
		doc.UpdatedAt = time.Now().UTC()

		err = r.put(ctx, doc)
		if err == nil {
			return doc.toDomain(), nil
		}
		if !isCouchStatus(err, http.StatusConflict) || attempt >= couchConflictRetries {
			return nil, fmt.Errorf("failed to %s note: %w", op, err)
		}
	}
}

func (r *couchNoteRepository) Create(ctx context.Context, note *domain.Note) (*domain.Note, error) {
	var owner couchUser
	if err := r.db.Get(ctx, userDocID(note.UserID)).ScanDoc(&owner); err != nil {
		if isCouchStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("owner %s: %w", note.UserID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find note owner: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	doc := &couchNote{
		DocID:     noteDocID(id),
		Type:      couchTypeNote,
		ID:        id,
		UserID:    note.UserID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	return doc.toDomain(), nil
}

func (r *couchNoteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *couchNoteRepository) findPage(ctx context.Context, query map[string]interface{}) ([]*couchNote, string, error) {
	rows := r.db.Find(ctx, query)
	defer rows.Close()

	page := make([]*couchNote, 0, couchPageSize)
	for rows.Next() {
		var doc couchNote
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, "", fmt.Errorf("failed to scan note: %w", err)
		}
		page = append(page, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to list notes: %w", err)
	}

	meta, err := rows.Metadata()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read list metadata: %w", err)
	}
	return page, meta.Bookmark, nil
}

// findDocsByOwner pages through every note of userID. Pages follow the Mango
// bookmark; drivers that return none are paged with skip.
func (r *couchNoteRepository) findDocsByOwner(ctx context.Context, userID string) ([]*couchNote, error) {
	docs := make([]*couchNote, 0)
	bookmark := ""
	for {
		query := map[string]interface{}{
			"selector": map[string]interface{}{
				"type":    couchTypeNote,
				"user_id": userID,
			},
			"limit": couchPageSize,
		}
		switch {
		case bookmark != "":
			query["bookmark"] = bookmark
		case len(docs) > 0:
			query["skip"] = len(docs)
		}

		page, next, err := r.findPage(ctx, query)
		if err != nil {
			return nil, err
		}
		docs = append(docs, page...)
		if len(page) < couchPageSize {
			return docs, nil
		}
		bookmark = next
	}
}

func (r *couchNoteRepository) FindByOwner(ctx context.Context, userID string) ([]*domain.Note, error) {
	docs, err := r.findDocsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	notes := make([]*domain.Note, 0, len(docs))
	for _, doc := range docs {
		notes = append(notes, doc.toDomain())
	}
	return notes, nil
}

func (r *couchNoteRepository) Update(ctx context.Context, id string, patch domain.NotePatch) (*domain.Note, error) {
	return r.mutate(ctx, id, "update", func(doc *couchNote) {
		if patch.Title != nil {
			doc.Title = *patch.Title
		}
		if patch.Content != nil {
			doc.Content = *patch.Content
		}
	})
}

func (r *couchNoteRepository) Delete(ctx context.Context, id string) error {
	doc, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.db.Delete(ctx, doc.DocID, doc.Rev); err != nil {
		if isCouchStatus(err, http.StatusNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to delete note: %w", err)
	}

	return nil
}

func (r *couchNoteRepository) SetArchived(ctx context.Context, id string, archived bool) (*domain.Note, error) {
	return r.mutate(ctx, id, "archive", func(doc *couchNote) {
		doc.IsArchived = archived
	})
}

type couchUserRepository struct {
	db *kivik.DB
}

func (r *couchUserRepository) get(ctx context.Context, id string) (*couchUser, error) {
	var doc couchUser
	if err := r.db.Get(ctx, userDocID(id)).ScanDoc(&doc); err != nil {
		if isCouchStatus(err, http.StatusNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return &doc, nil
}

// Create writes the user document first and then reserves the external id.
// A user document whose reservation lost the race is removed again; until
// then it is unreachable by external id.
func (r *couchUserRepository) Create(ctx context.Context, user *domain.NewUser) (*domain.User, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	doc := &couchUser{
		DocID:      userDocID(id),
		Type:       couchTypeUser,
		ID:         id,
		ExternalID: user.ExternalID,
		Email:      user.Email,
		Name:       user.Name,
		AvatarURL:  user.AvatarURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	rev, err := r.db.Put(ctx, doc.DocID, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	reservation := &couchExternalID{
		DocID:  externalDocID(user.ExternalID),
		UserID: id,
	}
	if _, err := r.db.Put(ctx, reservation.DocID, reservation); err != nil {
		if _, delErr := r.db.Delete(ctx, doc.DocID, rev); delErr != nil {
			return nil, fmt.Errorf("failed to roll back user %s: %w", id, delErr)
		}
		if isCouchStatus(err, http.StatusConflict) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to reserve external id: %w", err)
	}

	return doc.toDomain(), nil
}

func (r *couchUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *couchUserRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	var reservation couchExternalID
	if err := r.db.Get(ctx, externalDocID(externalID)).ScanDoc(&reservation); err != nil {
		if isCouchStatus(err, http.StatusNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user by external id: %w", err)
	}

	return r.FindByID(ctx, reservation.UserID)
}

func (r *couchUserRepository) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	for attempt := 0; ; attempt++ {
		doc, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}

		if patch.Email != nil {
			doc.Email = *patch.Email
		}
		if patch.Name != nil {
			doc.Name = *patch.Name
		}
		if patch.AvatarURL != nil {
			doc.AvatarURL = *patch.AvatarURL
		}
		doc.UpdatedAt = time.Now().UTC()

		rev, err := r.db.Put(ctx, doc.DocID, doc)
		if err == nil {
			doc.Rev = rev
			return doc.toDomain(), nil
		}
		if !isCouchStatus(err, http.StatusConflict) || attempt >= couchConflictRetries {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}
}

// Delete removes the user's notes, the external id reservation and the user
// document, in that order, so a partial failure never leaves orphaned notes
// behind a deleted user.
func (r *couchUserRepository) Delete(ctx context.Context, id string) error {
	doc, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	notes := &couchNoteRepository{db: r.db}
	owned, err := notes.findDocsByOwner(ctx, id)
	if err != nil {
		return err
	}
	for _, note := range owned {
		if _, err := r.db.Delete(ctx, note.DocID, note.Rev); err != nil && !isCouchStatus(err, http.StatusNotFound) {
			return fmt.Errorf("failed to delete note %s: %w", note.ID, err)
		}
	}

	var reservation couchExternalID
	err = r.db.Get(ctx, externalDocID(doc.ExternalID)).ScanDoc(&reservation)
	switch {
	case err == nil:
		if _, err := r.db.Delete(ctx, reservation.DocID, reservation.Rev); err != nil && !isCouchStatus(err, http.StatusNotFound) {
			return fmt.Errorf("failed to release external id: %w", err)
		}
	case !isCouchStatus(err, http.StatusNotFound):
		return fmt.Errorf("failed to find external id: %w", err)
	}

	if _, err := r.db.Delete(ctx, doc.DocID, doc.Rev); err != nil {
		if isCouchStatus(err, http.StatusNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return nil
}
