package inventory

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAggregate_MergesByKey(t *testing.T) {
	// WHAT: Same-key records are merged and quantities summed.
	// WHY: The page can list one item twice with and without a category prefix.
	raw := Raw{
		Seeds: {{Name: "Seeds Apple", Quantity: 3}, {Name: "apple", Quantity: 2}},
		Gear:  {},
		Eggs:  {},
	}
	got := Aggregate(raw)
	want := Snapshot{
		Seeds: []Record{{Name: "Apple", Quantity: 5}},
		Gear:  []Record{},
		Eggs:  []Record{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Aggregate mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_FirstSeenOrder(t *testing.T) {
	// WHAT: Output order follows first appearance and the first display name wins.
	raw := Raw{
		Gear: {
			{Name: "Trowel", Quantity: 1},
			{Name: "Watering Can", Quantity: 2},
			{Name: "gear trowel", Quantity: 4},
		},
	}
	got := Aggregate(raw).Gear
	want := []Record{{Name: "Trowel", Quantity: 5}, {Name: "Watering Can", Quantity: 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("gear mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	// WHAT: Aggregating an already aggregated snapshot is a no-op.
	// WHY: Callers may re-normalise stored snapshots.
	raw := Raw{
		Seeds: {{Name: "Seeds Carrot", Quantity: 4}, {Name: "Blueberry", Quantity: 1}, {Name: "carrot", Quantity: 1}},
		Gear:  {{Name: "Gear Sprinkler", Quantity: 2}},
		Eggs:  {{Name: "Common Egg", Quantity: 3}},
	}
	once := Aggregate(raw)
	twice := Aggregate(once.Raw())
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("not idempotent (-once +twice):\n%s", diff)
	}
}

func TestAggregate_SkipsEmptyNames(t *testing.T) {
	raw := Raw{Eggs: {{Name: "", Quantity: 9}, {Name: "  ", Quantity: 1}, {Name: "Bug Egg", Quantity: 1}}}
	got := Aggregate(raw).Eggs
	if len(got) != 1 || got[0].Name != "Bug Egg" {
		t.Fatalf("eggs: got %+v", got)
	}
}

func TestAggregate_MissingBucketsAreEmpty(t *testing.T) {
	// WHAT: Missing categories become empty arrays, never null.
	// WHY: Clients index the three arrays unconditionally.
	snap := Aggregate(nil)
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"seeds":[],"gear":[],"eggs":[]}` {
		t.Fatalf("json: got %s", data)
	}
}

func TestAggregate_BareCategoryWord(t *testing.T) {
	// WHAT: A label that is only a category word keeps its name.
	got := Aggregate(Raw{Gear: {{Name: "Gear", Quantity: 1}}}).Gear
	if len(got) != 1 || got[0].Name != "Gear" {
		t.Fatalf("got %+v", got)
	}
}

func TestSnapshotHelpers(t *testing.T) {
	s := Snapshot{
		Seeds: []Record{{Name: "Carrot", Quantity: 4}},
		Gear:  []Record{{Name: "Trowel", Quantity: 1}},
		Eggs:  []Record{},
	}
	if s.Total() != 2 {
		t.Fatalf("total: got %d", s.Total())
	}
	if diff := cmp.Diff([]string{"Carrot", "Trowel"}, s.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	if !s.Raw().HasAll() {
		t.Fatal("Raw() must carry all keys")
	}
	if (Raw{Seeds: nil}).HasAll() {
		t.Fatal("partial raw must not report HasAll")
	}
	if c, ok := ParseCategory("eggs"); !ok || c != Eggs {
		t.Fatalf("ParseCategory(eggs) = %q, %v", c, ok)
	}
	if _, ok := ParseCategory("pets"); ok {
		t.Fatal("ParseCategory(pets) should fail")
	}
}
