package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/micielski/filmweb-export/pkg/export"
	"github.com/micielski/filmweb-export/pkg/filmweb"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "snapshot.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveSnapshotAndCount(t *testing.T) {
	db := openTestDB(t)
	records := []export.RatingRecord{
		{ExternalID: 1, Title: "Stalker", Kind: filmweb.KindMovie, Year: 1979, Rating: 10, RatedAt: "2020-06-01", Favorited: true},
		{ExternalID: 2, Title: "Dekalog", Kind: filmweb.KindSeries, Year: 1989, Rating: 9},
	}

	if err := db.SaveSnapshot(context.Background(), records); err != nil {
		t.Fatal(err)
	}
	n, err := db.CountTitles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 stored titles, got %d", n)
	}
}

func TestSaveSnapshotReplacesPreviousRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := []export.RatingRecord{
		{ExternalID: 1, Title: "Stalker", Kind: filmweb.KindMovie, Year: 1979, Rating: 10},
		{ExternalID: 2, Title: "Dekalog", Kind: filmweb.KindSeries, Year: 1989, Rating: 9},
	}
	if err := db.SaveSnapshot(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := []export.RatingRecord{
		{ExternalID: 3, Title: "Ida", Kind: filmweb.KindMovie, Year: 2013, Rating: 8},
	}
	if err := db.SaveSnapshot(ctx, second); err != nil {
		t.Fatal(err)
	}

	n, err := db.CountTitles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("a snapshot must fully replace the previous run, got %d titles", n)
	}
}
