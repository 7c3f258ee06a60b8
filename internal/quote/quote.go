// Package quote defines the hitokoto data model: the immutable Quote record,
// the closed Category enumeration, and the per-request FilterSpec.
//
// Quotes are validated on the way into storage, never on the way out: an
// invalid category or a duplicate UUID is rejected at insert time so that
// query paths can trust every stored row.
package quote

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Category is a single-character tag from the closed catalog set.
type Category string

// The full sentences-bundle catalog.
const (
	CategoryAnime      Category = "a"
	CategoryComic      Category = "b"
	CategoryGame       Category = "c"
	CategoryLiterature Category = "d"
	CategoryOriginal   Category = "e"
	CategoryInternet   Category = "f"
	CategoryOther      Category = "g"
	CategoryMovie      Category = "h"
	CategoryPoem       Category = "i"
	CategoryLyric      Category = "j"
	CategoryPhilosophy Category = "k"
	CategoryJoke       Category = "l"
)

var categoryNames = map[Category]string{
	CategoryAnime:      "anime",
	CategoryComic:      "comic",
	CategoryGame:       "game",
	CategoryLiterature: "literature",
	CategoryOriginal:   "original",
	CategoryInternet:   "internet",
	CategoryOther:      "other",
	CategoryMovie:      "movie",
	CategoryPoem:       "poem",
	CategoryLyric:      "lyric",
	CategoryPhilosophy: "philosophy",
	CategoryJoke:       "joke",
}

// ParseCategory validates a category code.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

// Valid reports whether the category is a member of the closed set.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// Name returns the human-readable catalog name, or "" for an invalid code.
func (c Category) Name() string {
	return categoryNames[c]
}

// Quote is one stored entry. Records are immutable once stored: updates and
// deletes are not supported, the corpus changes only through inserts.
type Quote struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	Text      string    `json:"text"`
	Category  Category  `json:"type"`
	Source    string    `json:"from"`
	FromWho   string    `json:"from_who,omitempty"`
	Length    int       `json:"length"`
	CreatedAt time.Time `json:"created_at"`
}

// TextLength is the character (rune) count of s. Length is denormalized into
// storage so filter evaluation never recomputes it.
func TextLength(s string) int {
	return utf8.RuneCountInString(s)
}

// NewUUID returns a fresh globally unique identifier for a quote.
func NewUUID() string {
	return uuid.NewString()
}

// FilterSpec is the caller-supplied constraint set for one selection request.
// The zero value is unrestricted. MaxLength zero means unbounded; both bounds
// are inclusive.
type FilterSpec struct {
	Categories []Category
	MinLength  int
	MaxLength  int
}

// Unrestricted reports whether the filter constrains nothing.
func (f FilterSpec) Unrestricted() bool {
	return len(f.Categories) == 0 && f.MinLength <= 0 && f.MaxLength <= 0
}

// Matches reports whether q satisfies the filter.
func (f FilterSpec) Matches(q Quote) bool {
	if q.Length < f.MinLength {
		return false
	}
	if f.MaxLength > 0 && q.Length > f.MaxLength {
		return false
	}
	if len(f.Categories) == 0 {
		return true
	}
	for _, c := range f.Categories {
		if q.Category == c {
			return true
		}
	}
	return false
}
