package filmweb

// MediaKind tells films and series apart. The string values are exactly what
// the IMDb CSV importer expects in its Title Type column.
type MediaKind string

const (
	KindMovie  MediaKind = "movie"
	KindSeries MediaKind = "tvSeries"
)

// Category is one of the user's list groupings on the site. The value is the
// URL path segment of the list.
type Category string

const (
	CategoryFilms      Category = "films"
	CategorySerials    Category = "serials"
	CategoryFavorites  Category = "favorites"
	CategoryWantsToSee Category = "wantToSee"
)

// Categories returns every list grouping an export covers.
func Categories() []Category {
	return []Category{CategoryFilms, CategorySerials, CategoryFavorites, CategoryWantsToSee}
}

// Rated reports whether entries of this category carry a user vote, which
// means the logged-vote details API has data for them.
func (c Category) Rated() bool {
	return c == CategoryFilms || c == CategorySerials
}

func (c Category) String() string { return string(c) }

// WorkItem is one fetch-and-parse unit: a single page of a single category.
// Immutable once enqueued.
type WorkItem struct {
	Category Category
	Page     int
}

// SeedItems yields the first page of every category. Further pages are only
// discovered from earlier ones, so these are the entire initial queue.
func SeedItems() []WorkItem {
	cats := Categories()
	items := make([]WorkItem, 0, len(cats))
	for _, c := range cats {
		items = append(items, WorkItem{Category: c, Page: 1})
	}
	return items
}

// NextItem returns the follow-up work item for a page that reported more
// pages, and false for a terminal page.
func NextItem(item WorkItem, hasNext bool) (WorkItem, bool) {
	if !hasNext {
		return WorkItem{}, false
	}
	return WorkItem{Category: item.Category, Page: item.Page + 1}, true
}
