package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notely-server/internal/domain"
	"notely-server/internal/repository/migrations"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02"
)

// DBTX is the subset of database/sql used by the postgres repositories.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore serves both repositories from one connection pool owned by
// the caller.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens a pgx-backed pool for dsn and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Notes() NoteRepository {
	return NewPostgresNoteRepository(s.db)
}

func (s *PostgresStore) Users() UserRepository {
	return NewPostgresUserRepository(s.db)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

const noteColumns = `id, user_id, title, content, is_archived, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*domain.Note, error) {
	n := &domain.Note{}
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.IsArchived, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return n, nil
}

// lookupErr maps a single-row lookup failure. Malformed uuids cannot
// name an existing row, so they read as not found.
func lookupErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) || pgCode(err) == pgInvalidTextRepr {
		return domain.ErrNotFound
	}
	return fmt.Errorf("db error: %w", err)
}

type PostgresNoteRepository struct {
	db DBTX
}

func NewPostgresNoteRepository(db DBTX) *PostgresNoteRepository {
	return &PostgresNoteRepository{db: db}
}

func (r *PostgresNoteRepository) Create(ctx context.Context, note *domain.Note) (*domain.Note, error) {
	query :=
		`INSERT INTO notes (user_id, title, content)
		 VALUES ($1, $2, $3)
		 RETURNING ` + noteColumns

	created, err := scanNote(r.db.QueryRowContext(ctx, query, note.UserID, note.Title, note.Content))
	if err != nil {
		switch pgCode(err) {
		case pgForeignKeyViolation, pgInvalidTextRepr:
			return nil, fmt.Errorf("owner %s: %w", note.UserID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

func (r *PostgresNoteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	query :=
		`SELECT ` + noteColumns + ` FROM notes
		 WHERE id = $1`

	note, err := scanNote(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, lookupErr(err)
	}

	return note, nil
}

func (r *PostgresNoteRepository) FindByOwner(ctx context.Context, userID string) ([]*domain.Note, error) {
	query :=
		`SELECT ` + noteColumns + ` FROM notes
		 WHERE user_id = $1
		 ORDER BY updated_at DESC, seq ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		if pgCode(err) == pgInvalidTextRepr {
			return []*domain.Note{}, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	notes := make([]*domain.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return notes, nil
}

func (r *PostgresNoteRepository) Update(ctx context.Context, id string, patch domain.NotePatch) (*domain.Note, error) {
	query :=
		`UPDATE notes
		 SET title = COALESCE($2, title), content = COALESCE($3, content), updated_at = clock_timestamp()
		 WHERE id = $1
		 RETURNING ` + noteColumns

	note, err := scanNote(r.db.QueryRowContext(ctx, query, id, nullString(patch.Title), nullString(patch.Content)))
	if err != nil {
		return nil, lookupErr(err)
	}

	return note, nil
}

func (r *PostgresNoteRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM notes WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return lookupErr(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *PostgresNoteRepository) SetArchived(ctx context.Context, id string, archived bool) (*domain.Note, error) {
	query :=
		`UPDATE notes
		 SET is_archived = $2, updated_at = clock_timestamp()
		 WHERE id = $1
		 RETURNING ` + noteColumns

	note, err := scanNote(r.db.QueryRowContext(ctx, query, id, archived))
	if err != nil {
		return nil, lookupErr(err)
	}

	return note, nil
}

const userColumns = `id, external_id, email, name, avatar_url, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	var name, avatar sql.NullString
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &name, &avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Name = name.String
	u.AvatarURL = avatar.String
	return u, nil
}

type PostgresUserRepository struct {
	db DBTX
}

func NewPostgresUserRepository(db DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func optionalString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.NewUser) (*domain.User, error) {
	query :=
		`INSERT INTO users (external_id, email, name, avatar_url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING ` + userColumns

	created, err := scanUser(r.db.QueryRowContext(ctx, query,
		user.ExternalID, user.Email, optionalString(user.Name), optionalString(user.AvatarURL)))
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, lookupErr(err)
	}

	return user, nil
}

func (r *PostgresUserRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE external_id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	query :=
		`UPDATE users
		 SET email = COALESCE($2, email), name = COALESCE($3, name), avatar_url = COALESCE($4, avatar_url),
		     updated_at = clock_timestamp()
		 WHERE id = $1
		 RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query,
		id, nullString(patch.Email), nullString(patch.Name), nullString(patch.AvatarURL)))
	if err != nil {
		return nil, lookupErr(err)
	}

	return user, nil
}

// Delete relies on the notes.user_id foreign key cascade.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return lookupErr(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}
