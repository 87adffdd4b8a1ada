package filmweb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/micielski/filmweb-export/internal/utils"
)

// TitlesPerPage is how many vote boxes a full list page carries. A full page
// implies another may follow; a shorter one is terminal. Measured from the
// site, do not guess at it.
const TitlesPerPage = 25

// pageShellMarker is present on every votes-page shell, including a user's
// empty last page. Its absence means we are not looking at a list page.
const pageShellMarker = "userVotesPage"

// Title is one entry scraped off a list page, before rating details and
// category signals are attached.
type Title struct {
	ID   int
	Name string
	URL  string
	Kind MediaKind
	Year int
}

// PageResult is the parser output for one fetched page.
type PageResult struct {
	Titles      []Title
	HasNextPage bool
}

// ParsePage extracts all vote boxes from one list page body. A single broken
// box is skipped with a warning; a body that is not a votes page at all is
// ErrMalformedPage. The next-page signal is purely the page-size heuristic,
// so it is deterministic for a given body.
func ParsePage(category Category, body string) (*PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	boxes := doc.Find("div.myVoteBox")
	if boxes.Length() == 0 {
		if !strings.Contains(body, pageShellMarker) {
			return nil, ErrMalformedPage
		}
		return &PageResult{}, nil
	}

	result := &PageResult{
		Titles: make([]Title, 0, boxes.Length()),
		// Count boxes, not successfully parsed titles, so a skipped box
		// cannot cut pagination short.
		HasNextPage: boxes.Length() == TitlesPerPage,
	}

	boxes.Each(func(_ int, box *goquery.Selection) {
		title, err := parseVoteBox(box)
		if err != nil {
			utils.Log.Warn("Skipping a broken entry on ", category, " page: ", err)
			return
		}
		result.Titles = append(result.Titles, title)
	})

	return result, nil
}

func parseVoteBox(box *goquery.Selection) (Title, error) {
	rawID, ok := box.Find(".previewFilm").First().Attr("data-film-id")
	if !ok {
		return Title{}, fmt.Errorf("vote box without a film id")
	}
	id, err := strconv.Atoi(strings.TrimSpace(rawID))
	if err != nil {
		return Title{}, fmt.Errorf("bad film id %q", rawID)
	}

	link := box.Find(".preview__link").First()
	name := strings.TrimSpace(link.Text())
	if name == "" {
		return Title{}, fmt.Errorf("title %d has no name", id)
	}
	href, _ := link.Attr("href")

	year, ok := utils.ParseYear(box.Find(".preview__year").First().Text())
	if !ok {
		return Title{}, fmt.Errorf("title %d has an unparsable year", id)
	}

	return Title{
		ID:   id,
		Name: name,
		URL:  DefaultBaseURL + href,
		Kind: kindFromHref(href),
		Year: year,
	}, nil
}

// kindFromHref tells films and series apart by the canonical link prefix.
// Mixed lists (favorites, watchlist) rely on this.
func kindFromHref(href string) MediaKind {
	if strings.HasPrefix(href, "/serial") {
		return KindSeries
	}
	return KindMovie
}
