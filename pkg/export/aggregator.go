package export

import (
	"sort"
	"sync"
)

// Aggregator owns the run's dataset: a mapping from title key to the merged
// record. Workers ingest concurrently; nothing else mutates it. Once frozen
// it only gets read.
type Aggregator struct {
	mu     sync.Mutex
	titles map[Key]RatingRecord
	frozen bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{titles: make(map[Key]RatingRecord)}
}

// Ingest merges one record into the dataset. Safe for concurrent use;
// concurrent writes to the same key both land because the merge happens
// under the lock.
func (a *Aggregator) Ingest(rec RatingRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozen {
		panic("ingest after freeze")
	}
	key := rec.Key()
	if existing, ok := a.titles[key]; ok {
		rec = Merge(existing, rec)
	}
	a.titles[key] = rec
}

// Len reports how many distinct titles have been collected so far.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.titles)
}

// Freeze closes the dataset and returns it ordered by external id (kind
// breaks the rare tie). The order is a pure function of the contents, so two
// runs over the same data produce byte-identical output no matter how the
// fetches interleaved.
func (a *Aggregator) Freeze() []RatingRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen = true

	records := make([]RatingRecord, 0, len(a.titles))
	for _, rec := range a.titles {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].ExternalID != records[j].ExternalID {
			return records[i].ExternalID < records[j].ExternalID
		}
		return records[i].Kind < records[j].Kind
	})
	return records
}
