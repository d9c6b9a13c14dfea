package domain

import "time"

type Note struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	IsArchived bool      `json:"isArchived"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NotePatch carries a partial note update. Nil fields are left unchanged.
type NotePatch struct {
	Title   *string
	Content *string
}

type CreateNoteRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type UpdateNoteRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type ArchiveNoteRequest struct {
	IsArchived *bool `json:"isArchived" validate:"required"`
}

type NoteResponse struct {
	Note *Note `json:"note"`
}

type NoteListResponse struct {
	Notes []*Note `json:"notes"`
}
