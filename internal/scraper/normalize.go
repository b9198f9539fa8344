package scraper

import (
	"math"
	"strings"

	"holders-api/internal/store"
)

// Normalize cleans a raw source result: trims addresses, drops rows with an
// empty address or a negative or non-finite balance, keeps the first row per
// address, and derives percentage from the total when a row has none.
func Normalize(entries []store.HolderEntry) []store.HolderEntry {
	out := make([]store.HolderEntry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	var total float64

	for _, e := range entries {
		e.Address = strings.TrimSpace(e.Address)
		if e.Address == "" || !finite(e.Balance) || e.Balance < 0 {
			continue
		}
		if _, dup := seen[e.Address]; dup {
			continue
		}
		seen[e.Address] = struct{}{}
		if !finite(e.Percentage) || e.Percentage < 0 {
			e.Percentage = 0
		}
		total += e.Balance
		out = append(out, e)
	}

	if total > 0 {
		for i := range out {
			if out[i].Percentage == 0 {
				out[i].Percentage = out[i].Balance / total * 100
			}
		}
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
