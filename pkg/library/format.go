package library

import (
	"fmt"
	"iter"
	"strings"

	"github.com/go-go-golems/librarian/pkg/render"
)

func ratingText(r *int) string {
	if r == nil || *r <= 0 {
		return "Not rated"
	}
	return strings.Repeat("⭐", *r)
}

func chunk(content string) render.Chunk {
	return render.Chunk{Content: content, Speakable: true}
}

// listing yields a header chunk followed by one chunk per item, or a single
// empty-message chunk.
func listing[T any](items []T, empty, header string, line func(T) string) iter.Seq[render.Chunk] {
	return func(yield func(render.Chunk) bool) {
		if len(items) == 0 {
			yield(chunk(empty))
			return
		}
		if !yield(chunk(header)) {
			return
		}
		for _, it := range items {
			if !yield(chunk(line(it))) {
				return
			}
		}
	}
}

// FormatBooks renders a list_books result.
func FormatBooks(books []Book) iter.Seq[render.Chunk] {
	return listing(books,
		"No books found matching your criteria.",
		fmt.Sprintf("Found %d books in your collection:\n\n", len(books)),
		func(b Book) string {
			return fmt.Sprintf("📚 %s by %s\n   Genre: %s, Published: %d\n   Rating: %s\n",
				b.Title, b.Author, b.Genre, b.YearPublished, ratingText(b.Rating))
		})
}

// FormatBookDetails renders a get_book_details result as one chunk.
func FormatBookDetails(d *BookDetails) iter.Seq[render.Chunk] {
	if d == nil {
		return render.Single("No book details available.", true)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📖 Book Details: %s\n\n", d.Title)
	fmt.Fprintf(&sb, "Author: %s\n", d.Author)
	fmt.Fprintf(&sb, "Genre: %s\n", d.Genre)
	fmt.Fprintf(&sb, "Published: %d\n", d.YearPublished)
	fmt.Fprintf(&sb, "Rating: %s\n", ratingText(d.Rating))
	if d.Notes != "" {
		fmt.Fprintf(&sb, "\nNotes: %s\n", d.Notes)
	}
	fmt.Fprintf(&sb, "\nAdded to collection: %s\n", d.DateAdded)
	return render.Single(sb.String(), true)
}

// FormatGenres renders a list_genres result.
func FormatGenres(genres []Genre) iter.Seq[render.Chunk] {
	return listing(genres,
		"No genres found in your collection.",
		"Available genres in your collection:\n\n",
		func(g Genre) string {
			return fmt.Sprintf("🏷️ %s (%d books)\n", g.Name, g.BookCount)
		})
}

// FormatAuthors renders a list_authors result.
func FormatAuthors(authors []Author) iter.Seq[render.Chunk] {
	return listing(authors,
		"No authors found in your collection.",
		"Authors in your collection:\n\n",
		func(a Author) string {
			s := "✍️ " + a.Name
			if a.BirthYear != 0 {
				s += fmt.Sprintf(" (born %d)", a.BirthYear)
			}
			return s + fmt.Sprintf(" - %d books\n", a.BookCount)
		})
}
