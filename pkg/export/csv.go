package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/micielski/filmweb-export/internal/utils"
)

// Header is the IMDb-v3 ratings export layout. Importers match on the exact
// names and order, so it never changes shape; columns we have no data for
// stay blank.
var Header = []string{
	"Const",
	"Your Rating",
	"Date Rated",
	"Title",
	"URL",
	"Title Type",
	"IMDb Rating",
	"Runtime (mins)",
	"Year",
	"Genres",
	"Num Votes",
	"Release Date",
	"Directors",
}

// Output file names, one per import grouping.
const (
	RatingsFile   = "ratings.csv"
	FavoritedFile = "favorited.csv"
	WatchlistFile = "watchlist.csv"
)

// CsvExporter writes the frozen dataset into the three grouping files under
// OutDir. Pure and single pass: each record lands in exactly one file, rows
// keep the dataset's order.
type CsvExporter struct {
	OutDir string
}

func (e *CsvExporter) Export(records []RatingRecord) error {
	if err := os.MkdirAll(e.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	groups := map[string][]RatingRecord{}
	for _, rec := range records {
		groups[groupFor(rec)] = append(groups[groupFor(rec)], rec)
	}

	for _, name := range []string{RatingsFile, FavoritedFile, WatchlistFile} {
		path := filepath.Join(e.OutDir, name)
		if err := writeGroup(path, groups[name]); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

// groupFor routes a record to its file: favorites keep their rating in the
// favorited file, everything else rated goes to ratings, the rest is
// watchlist-only.
func groupFor(rec RatingRecord) string {
	switch {
	case rec.Favorited:
		return FavoritedFile
	case rec.Rating > 0:
		return RatingsFile
	default:
		return WatchlistFile
	}
}

func writeGroup(path string, records []RatingRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteCsv(f, records); err != nil {
		return err
	}
	return f.Close()
}

// WriteCsv serializes records to one CSV stream, header first. Split out
// from the file handling so determinism is testable against a plain buffer.
func WriteCsv(w io.Writer, records []RatingRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write(row(rec)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func row(rec RatingRecord) []string {
	fields := make([]string, len(Header))
	fields[0] = strconv.Itoa(rec.ExternalID)
	fields[1] = utils.BlankIfZero(rec.Rating)
	fields[2] = rec.RatedAt
	fields[3] = rec.Title
	fields[4] = rec.URL
	fields[5] = string(rec.Kind)
	fields[8] = utils.BlankIfZero(rec.Year)
	return fields
}
