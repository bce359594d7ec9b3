package inventory

import "strings"

// Aggregate merges the raw extractor output into a Snapshot. Within each
// bucket, records sharing a NormalizeKey are combined: quantities are
// summed and the first display name seen wins. Output order follows first
// appearance. A missing bucket yields an empty list.
func Aggregate(raw Raw) Snapshot {
	return Snapshot{
		Seeds: mergeBucket(raw[Seeds]),
		Gear:  mergeBucket(raw[Gear]),
		Eggs:  mergeBucket(raw[Eggs]),
	}
}

func mergeBucket(recs []Record) []Record {
	out := make([]Record, 0, len(recs))
	index := make(map[string]int, len(recs))
	for _, r := range recs {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		display := StripCategoryPrefix(r.Name)
		if display == "" {
			// A bare "Gear" label: keep it rather than emit an empty name.
			display = strings.TrimSpace(r.Name)
		}
		key := NormalizeKey(r.Name)
		if key == "" {
			key = strings.ToLower(display)
		}
		qty := r.Quantity
		if qty < 0 {
			qty = 0
		}
		if i, ok := index[key]; ok {
			out[i].Quantity += qty
			continue
		}
		index[key] = len(out)
		out = append(out, Record{Name: display, Quantity: qty})
	}
	return out
}
