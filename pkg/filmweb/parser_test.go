package filmweb

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func voteBox(id int, name, href, year string) string {
	return fmt.Sprintf(`<div class="myVoteBox"><div class="previewFilm" data-film-id="%d"></div><a class="preview__link" href="%s">%s</a><span class="preview__year">%s</span></div>`,
		id, href, name, year)
}

func votesPage(boxes ...string) string {
	return `<html><body><div class="userVotesPage">` + strings.Join(boxes, "") + `</div></body></html>`
}

func filmBoxes(start, count int) []string {
	boxes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := start + i
		boxes = append(boxes, voteBox(id, fmt.Sprintf("Film %d", id), fmt.Sprintf("/film/Film-%d", id), "2001"))
	}
	return boxes
}

func TestParsePageFullPageHasNext(t *testing.T) {
	result, err := ParsePage(CategoryFilms, votesPage(filmBoxes(1, TitlesPerPage)...))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Titles) != TitlesPerPage {
		t.Fatalf("expected %d titles, got %d", TitlesPerPage, len(result.Titles))
	}
	if !result.HasNextPage {
		t.Fatal("a full page should signal a possible next page")
	}
}

func TestParsePageShortPageIsTerminal(t *testing.T) {
	result, err := ParsePage(CategoryFilms, votesPage(filmBoxes(1, 3)...))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Titles) != 3 {
		t.Fatalf("expected 3 titles, got %d", len(result.Titles))
	}
	if result.HasNextPage {
		t.Fatal("a short page must be terminal")
	}
}

func TestParsePageEmptyShell(t *testing.T) {
	result, err := ParsePage(CategoryWantsToSee, votesPage())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Titles) != 0 || result.HasNextPage {
		t.Fatalf("an empty votes page is a normal terminal page, got %+v", result)
	}
}

func TestParsePageNotAVotesPage(t *testing.T) {
	_, err := ParsePage(CategoryFilms, "<html><body><h1>Something else entirely</h1></body></html>")
	if !errors.Is(err, ErrMalformedPage) {
		t.Fatalf("expected ErrMalformedPage, got %v", err)
	}
}

func TestParsePageSeriesKindAndYearRange(t *testing.T) {
	body := votesPage(voteBox(94331, "Miasteczko South Park", "/serial/Miasteczko+South+Park-1997-94331", "1997-2022"))
	result, err := ParsePage(CategorySerials, body)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Titles) != 1 {
		t.Fatalf("expected 1 title, got %d", len(result.Titles))
	}
	title := result.Titles[0]
	if title.Kind != KindSeries {
		t.Fatalf("expected %q from a /serial href, got %q", KindSeries, title.Kind)
	}
	if title.Year != 1997 {
		t.Fatalf("expected the first year of the range, got %d", title.Year)
	}
	if title.ID != 94331 {
		t.Fatalf("expected id 94331, got %d", title.ID)
	}
}

func TestParsePageBrokenBoxSkippedWithoutCuttingPagination(t *testing.T) {
	boxes := filmBoxes(1, TitlesPerPage-1)
	boxes = append(boxes, voteBox(0, "No Year", "/film/No-Year-999", "soon"))
	result, err := ParsePage(CategoryFilms, votesPage(boxes...))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Titles) != TitlesPerPage-1 {
		t.Fatalf("expected the broken box to be skipped, got %d titles", len(result.Titles))
	}
	if !result.HasNextPage {
		t.Fatal("pagination must count boxes, not parsed titles")
	}
}

func TestParsePageMixedKindsInFavorites(t *testing.T) {
	body := votesPage(
		voteBox(10, "A Film", "/film/A-Film-10", "2010"),
		voteBox(20, "A Series", "/serial/A-Series-20", "2015-2019"),
	)
	result, err := ParsePage(CategoryFavorites, body)
	if err != nil {
		t.Fatal(err)
	}
	if result.Titles[0].Kind != KindMovie || result.Titles[1].Kind != KindSeries {
		t.Fatalf("kinds not derived from hrefs: %+v", result.Titles)
	}
}
