package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const catalogSchemaV1 = `
CREATE TABLE IF NOT EXISTS genres (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS authors (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    birth_year INTEGER
);

CREATE TABLE IF NOT EXISTS books (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    author_id INTEGER NOT NULL,
    genre_id INTEGER NOT NULL,
    year_published INTEGER,
    rating INTEGER,
    notes TEXT,
    date_added TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (author_id) REFERENCES authors (id),
    FOREIGN KEY (genre_id) REFERENCES genres (id)
);

CREATE INDEX IF NOT EXISTS idx_books_genre_id ON books(genre_id);
CREATE INDEX IF NOT EXISTS idx_books_author_id ON books(author_id);
`

// DateAddedLayout is the textual format of Book.DateAdded.
const DateAddedLayout = "2006-01-02 15:04:05"

// DefaultListLimit is used when list_books is called without a positive limit.
const DefaultListLimit = 10

// Book is one row of a book listing.
type Book struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Genre         string `json:"genre"`
	YearPublished int    `json:"year_published,omitempty"`
	Rating        *int   `json:"rating"`
}

// BookDetails is everything the catalog knows about a single book.
type BookDetails struct {
	Book
	AuthorID  int    `json:"author_id"`
	GenreID   int    `json:"genre_id"`
	Notes     string `json:"notes,omitempty"`
	DateAdded string `json:"date_added"`
}

type Genre struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	BookCount int    `json:"book_count"`
}

type Author struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	BirthYear int    `json:"birth_year,omitempty"`
	BookCount int    `json:"book_count"`
}

// BookFilter narrows ListBooks. Zero values mean "no filter".
type BookFilter struct {
	GenreID     int
	AuthorID    int
	TitleSearch string
	Limit       int
}

// BookNotFoundError is returned by GetBook for an unknown id.
type BookNotFoundError struct {
	ID int
}

func (e *BookNotFoundError) Error() string {
	return fmt.Sprintf("Book with ID %d not found", e.ID)
}

// Catalog is the SQLite-backed book collection.
type Catalog struct {
	db *sql.DB
}

// Open opens (and creates if needed) the catalog database at dsn and applies the schema.
func Open(dsn string) (*Catalog, error) {
	if dsn == "" {
		return nil, errors.New("library catalog: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "could not open catalog database")
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	if _, err := c.db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return errors.Wrap(err, "could not enable foreign keys")
	}
	if _, err := c.db.Exec(catalogSchemaV1); err != nil {
		return errors.Wrap(err, "could not create catalog schema")
	}
	return nil
}

func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Seed replaces the catalog content with the sample collection. Every book gets addedAt
// as its date added.
func (c *Catalog) Seed(ctx context.Context, addedAt time.Time) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin seed transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range []string{"DELETE FROM books", "DELETE FROM authors", "DELETE FROM genres"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "could not run %q", stmt)
		}
	}

	for _, g := range sampleGenres {
		if _, err := tx.ExecContext(ctx, `INSERT INTO genres (id, name) VALUES (?, ?)`, g.id, g.name); err != nil {
			return errors.Wrapf(err, "could not insert genre %s", g.name)
		}
	}
	for _, a := range sampleAuthors {
		if _, err := tx.ExecContext(ctx, `INSERT INTO authors (id, name, birth_year) VALUES (?, ?, ?)`, a.id, a.name, a.birthYear); err != nil {
			return errors.Wrapf(err, "could not insert author %s", a.name)
		}
	}
	added := addedAt.UTC().Format(DateAddedLayout)
	for _, b := range sampleBooks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO books (id, title, author_id, genre_id, year_published, rating, notes, date_added)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.id, b.title, b.authorID, b.genreID, b.year, b.rating, b.notes, added)
		if err != nil {
			return errors.Wrapf(err, "could not insert book %s", b.title)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit seed")
	}
	log.Info().
		Int("genres", len(sampleGenres)).
		Int("authors", len(sampleAuthors)).
		Int("books", len(sampleBooks)).
		Msg("Seeded book catalog")
	return nil
}

// ListBooks returns books ordered by title.
func (c *Catalog) ListBooks(ctx context.Context, f BookFilter) ([]Book, error) {
	var (
		conds []string
		args  []any
	)
	if f.GenreID != 0 {
		conds = append(conds, "b.genre_id = ?")
		args = append(args, f.GenreID)
	}
	if f.AuthorID != 0 {
		conds = append(conds, "b.author_id = ?")
		args = append(args, f.AuthorID)
	}
	if s := strings.TrimSpace(f.TitleSearch); s != "" {
		conds = append(conds, "b.title LIKE ?")
		args = append(args, "%"+s+"%")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var q strings.Builder
	q.WriteString(`
SELECT b.id, b.title, a.name, g.name, b.year_published, b.rating
FROM books b
JOIN authors a ON b.author_id = a.id
JOIN genres g ON b.genre_id = g.id`)
	if len(conds) > 0 {
		q.WriteString("\nWHERE ")
		q.WriteString(strings.Join(conds, " AND "))
	}
	q.WriteString("\nORDER BY b.title\nLIMIT ?")
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "could not list books")
	}
	defer func() {
		_ = rows.Close()
	}()

	books := []Book{}
	for rows.Next() {
		var (
			b      Book
			year   sql.NullInt64
			rating sql.NullInt64
		)
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &year, &rating); err != nil {
			return nil, errors.Wrap(err, "could not scan book")
		}
		b.YearPublished = int(year.Int64)
		b.Rating = nullableInt(rating)
		books = append(books, b)
	}
	return books, errors.Wrap(rows.Err(), "could not iterate books")
}

// GetBook returns the details of one book, or a *BookNotFoundError.
func (c *Catalog) GetBook(ctx context.Context, id int) (*BookDetails, error) {
	row := c.db.QueryRowContext(ctx, `
SELECT b.id, b.title, a.name, a.id, g.name, g.id, b.year_published, b.rating, b.notes, b.date_added
FROM books b
JOIN authors a ON b.author_id = a.id
JOIN genres g ON b.genre_id = g.id
WHERE b.id = ?`, id)

	var (
		d      BookDetails
		year   sql.NullInt64
		rating sql.NullInt64
		notes  sql.NullString
	)
	err := row.Scan(&d.ID, &d.Title, &d.Author, &d.AuthorID, &d.Genre, &d.GenreID, &year, &rating, &notes, &d.DateAdded)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, &BookNotFoundError{ID: id}
	case err != nil:
		return nil, errors.Wrapf(err, "could not load book %d", id)
	}
	d.YearPublished = int(year.Int64)
	d.Rating = nullableInt(rating)
	d.Notes = notes.String
	return &d, nil
}

// ListGenres returns every genre with its book count, ordered by name.
func (c *Catalog) ListGenres(ctx context.Context) ([]Genre, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT g.id, g.name, COUNT(b.id)
FROM genres g
LEFT JOIN books b ON g.id = b.genre_id
GROUP BY g.id
ORDER BY g.name`)
	if err != nil {
		return nil, errors.Wrap(err, "could not list genres")
	}
	defer func() {
		_ = rows.Close()
	}()

	genres := []Genre{}
	for rows.Next() {
		var g Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.BookCount); err != nil {
			return nil, errors.Wrap(err, "could not scan genre")
		}
		genres = append(genres, g)
	}
	return genres, errors.Wrap(rows.Err(), "could not iterate genres")
}

// ListAuthors returns every author with their book count, ordered by name.
func (c *Catalog) ListAuthors(ctx context.Context) ([]Author, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT a.id, a.name, a.birth_year, COUNT(b.id)
FROM authors a
LEFT JOIN books b ON a.id = b.author_id
GROUP BY a.id
ORDER BY a.name`)
	if err != nil {
		return nil, errors.Wrap(err, "could not list authors")
	}
	defer func() {
		_ = rows.Close()
	}()

	authors := []Author{}
	for rows.Next() {
		var (
			a    Author
			born sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.Name, &born, &a.BookCount); err != nil {
			return nil, errors.Wrap(err, "could not scan author")
		}
		a.BirthYear = int(born.Int64)
		authors = append(authors, a)
	}
	return authors, errors.Wrap(rows.Err(), "could not iterate authors")
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
