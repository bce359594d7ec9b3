// Package inventory defines the stock data model shared by the extractor,
// the scrape driver and the pipeline: categories, records and snapshots,
// plus the text normalisation and aggregation rules that turn raw page
// entries into a deduplicated snapshot.
package inventory

// Category identifies one of the three stock buckets.
type Category string

const (
	Seeds Category = "seeds"
	Gear  Category = "gear"
	Eggs  Category = "eggs"
)

// Categories lists every bucket in display order.
var Categories = []Category{Seeds, Gear, Eggs}

// ParseCategory returns the Category named by s.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Record is one item line: a display name and its available count.
type Record struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Raw is the extractor output, keyed by category. A missing key means the
// page structure did not produce that bucket at all, which is different
// from a present but empty bucket.
type Raw map[Category][]Record

// HasAll reports whether every category key is present.
func (r Raw) HasAll() bool {
	for _, c := range Categories {
		if _, ok := r[c]; !ok {
			return false
		}
	}
	return true
}

// Count returns the number of records across all buckets.
func (r Raw) Count() int {
	n := 0
	for _, recs := range r {
		n += len(recs)
	}
	return n
}

// Snapshot is the normalised stock at one point in time. Buckets are never
// nil so that the JSON form always carries three arrays.
type Snapshot struct {
	Seeds []Record `json:"seeds"`
	Gear  []Record `json:"gear"`
	Eggs  []Record `json:"eggs"`
}

// Empty returns a snapshot with three empty buckets.
func Empty() Snapshot {
	return Snapshot{Seeds: []Record{}, Gear: []Record{}, Eggs: []Record{}}
}

// Bucket returns the records of category c.
func (s Snapshot) Bucket(c Category) []Record {
	switch c {
	case Seeds:
		return s.Seeds
	case Gear:
		return s.Gear
	case Eggs:
		return s.Eggs
	}
	return nil
}

// Total returns the number of records across all buckets.
func (s Snapshot) Total() int {
	return len(s.Seeds) + len(s.Gear) + len(s.Eggs)
}

// Raw converts the snapshot back to the extractor shape.
func (s Snapshot) Raw() Raw {
	return Raw{Seeds: s.Seeds, Gear: s.Gear, Eggs: s.Eggs}
}

// Names returns every display name, bucket by bucket.
func (s Snapshot) Names() []string {
	names := make([]string, 0, s.Total())
	for _, c := range Categories {
		for _, r := range s.Bucket(c) {
			names = append(names, r.Name)
		}
	}
	return names
}
