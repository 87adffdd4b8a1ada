package export

import (
	"github.com/micielski/filmweb-export/pkg/filmweb"
)

// Key uniquely identifies a title across every category. Records sharing a
// key are merged, never duplicated.
type Key struct {
	ExternalID int
	Kind       filmweb.MediaKind
}

// RatingRecord is one exported title with every signal the user's lists
// attached to it. A title rated and favorited carries both.
type RatingRecord struct {
	ExternalID  int
	Title       string
	URL         string
	Kind        filmweb.MediaKind
	Year        int
	Rating      int    // 1-10, 0 when unrated
	RatedAt     string // YYYY-MM-DD, "" when unknown
	Favorited   bool
	Watchlisted bool
}

func (r RatingRecord) Key() Key {
	return Key{ExternalID: r.ExternalID, Kind: r.Kind}
}

// Merge unions two records for the same key. It is commutative and
// idempotent: booleans are OR-ed, numbers take the larger value (only one
// side of a real merge ever carries one), and string fields take the
// deterministic non-empty pick, so the result never depends on which
// category's page happened to be fetched first.
func Merge(a, b RatingRecord) RatingRecord {
	return RatingRecord{
		ExternalID:  a.ExternalID,
		Kind:        a.Kind,
		Title:       pickString(a.Title, b.Title),
		URL:         pickString(a.URL, b.URL),
		Year:        maxInt(a.Year, b.Year),
		Rating:      maxInt(a.Rating, b.Rating),
		RatedAt:     pickString(a.RatedAt, b.RatedAt),
		Favorited:   a.Favorited || b.Favorited,
		Watchlisted: a.Watchlisted || b.Watchlisted,
	}
}

func pickString(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case a <= b:
		return a
	default:
		return b
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
