package library

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/librarian/pkg/cache"
	"github.com/go-go-golems/librarian/pkg/inference/tools"
	"github.com/go-go-golems/librarian/pkg/render"
)

const (
	ToolListBooks      = "list_books"
	ToolGetBookDetails = "get_book_details"
	ToolListGenres     = "list_genres"
	ToolListAuthors    = "list_authors"
)

const cacheKeyAll = "all"

// Source is the read side of the catalog used by the tools.
type Source interface {
	ListBooks(ctx context.Context, f BookFilter) ([]Book, error)
	GetBook(ctx context.Context, id int) (*BookDetails, error)
	ListGenres(ctx context.Context) ([]Genre, error)
	ListAuthors(ctx context.Context) ([]Author, error)
}

var _ Source = (*Catalog)(nil)

type ListBooksInput struct {
	GenreID     *int   `json:"genre_id,omitempty" jsonschema:"description=Optional ID of the genre to filter by"`
	AuthorID    *int   `json:"author_id,omitempty" jsonschema:"description=Optional ID of the author to filter by"`
	TitleSearch string `json:"title_search,omitempty" jsonschema:"description=Optional case-insensitive part of the title to search for"`
	Limit       *int   `json:"limit,omitempty" jsonschema:"description=Maximum number of books to return (default: 10)"`
}

func (in ListBooksInput) filter() BookFilter {
	f := BookFilter{TitleSearch: in.TitleSearch}
	if in.GenreID != nil {
		f.GenreID = *in.GenreID
	}
	if in.AuthorID != nil {
		f.AuthorID = *in.AuthorID
	}
	if in.Limit != nil {
		f.Limit = *in.Limit
	}
	return f
}

type GetBookDetailsInput struct {
	BookID int `json:"book_id" jsonschema:"description=The ID of the book to get details for"`
}

// Toolset exposes a catalog as the four book tools. Genre and author listings
// are served from explicitly owned TTL caches.
type Toolset struct {
	source  Source
	genres  *cache.TTL[string, []Genre]
	authors *cache.TTL[string, []Author]
}

type ToolsetOption func(*Toolset)

func WithGenreCache(c *cache.TTL[string, []Genre]) ToolsetOption {
	return func(t *Toolset) { t.genres = c }
}

func WithAuthorCache(c *cache.TTL[string, []Author]) ToolsetOption {
	return func(t *Toolset) { t.authors = c }
}

// WithCacheTTL creates both caches with the given time-to-live.
func WithCacheTTL(ttl time.Duration) ToolsetOption {
	return func(t *Toolset) {
		t.genres = cache.NewTTL[string, []Genre](ttl)
		t.authors = cache.NewTTL[string, []Author](ttl)
	}
}

func NewToolset(source Source, opts ...ToolsetOption) *Toolset {
	t := &Toolset{source: source}
	for _, o := range opts {
		o(t)
	}
	if t.genres == nil {
		t.genres = cache.NewTTL[string, []Genre](0)
	}
	if t.authors == nil {
		t.authors = cache.NewTTL[string, []Author](0)
	}
	return t
}

// InvalidateCaches drops the cached genre and author listings.
func (t *Toolset) InvalidateCaches() {
	t.genres.Clear()
	t.authors.Clear()
}

func (t *Toolset) ListBooks(ctx context.Context, in ListBooksInput) ([]Book, error) {
	return t.source.ListBooks(ctx, in.filter())
}

func (t *Toolset) GetBookDetails(ctx context.Context, in GetBookDetailsInput) (*BookDetails, error) {
	return t.source.GetBook(ctx, in.BookID)
}

func (t *Toolset) ListGenres(ctx context.Context) ([]Genre, error) {
	return t.genres.GetOrLoad(ctx, cacheKeyAll, func(ctx context.Context) ([]Genre, error) {
		log.Debug().Msg("loading genres from catalog")
		return t.source.ListGenres(ctx)
	})
}

func (t *Toolset) ListAuthors(ctx context.Context) ([]Author, error) {
	return t.authors.GetOrLoad(ctx, cacheKeyAll, func(ctx context.Context) ([]Author, error) {
		log.Debug().Msg("loading authors from catalog")
		return t.source.ListAuthors(ctx)
	})
}

// Definitions builds the tool definitions in the order they are advertised to the model.
func (t *Toolset) Definitions() ([]*tools.ToolDefinition, error) {
	type entry struct {
		name, description string
		fn                interface{}
		format            render.FormatFunc
	}
	entries := []entry{
		{ToolListBooks, "Lists books in the collection, optionally filtered by genre, author or title", t.ListBooks, render.Typed(FormatBooks)},
		{ToolGetBookDetails, "Gets detailed information about a specific book", t.GetBookDetails, render.Typed(FormatBookDetails)},
		{ToolListGenres, "Lists all available genres in the collection", t.ListGenres, render.Typed(FormatGenres)},
		{ToolListAuthors, "Lists all authors in the collection", t.ListAuthors, render.Typed(FormatAuthors)},
	}

	defs := make([]*tools.ToolDefinition, 0, len(entries))
	for _, s := range entries {
		def, err := tools.NewToolFromFunc(s.name, s.description, s.fn)
		if err != nil {
			return nil, errors.Wrapf(err, "could not build tool %s", s.name)
		}
		defs = append(defs, def.WithFormatter(s.format).WithTags("library"))
	}
	return defs, nil
}

// Register adds the book tools to registry.
func (t *Toolset) Register(registry *tools.Registry) error {
	defs, err := t.Definitions()
	if err != nil {
		return err
	}
	return registry.RegisterAll(defs...)
}
