package domain

import "example.com/prayer/internal/catalog"

// minutesPerPrayer converts offered time into an approximate prayer count.
const minutesPerPrayer = 30

// Summary is the headline statistics shown above the dashboard.
type Summary struct {
	TotalPrayers int64 `json:"total_prayers"`
	TotalMinutes int64 `json:"total_minutes"`
	ActiveTypes  int   `json:"active_types"`
	CatalogSize  int   `json:"catalog_size"`
}

// Summarize derives a Summary from catalog-complete totals.
func Summarize(totals map[int]int64) Summary {
	s := Summary{CatalogSize: catalog.Len()}
	for _, at := range catalog.All() {
		total := totals[at.ID]
		if total > 0 {
			s.ActiveTypes++
		}
		switch at.Unit {
		case catalog.UnitMinutes:
			s.TotalMinutes += total
			s.TotalPrayers += ceilDiv(total, minutesPerPrayer)
		default:
			s.TotalPrayers += total
		}
	}
	return s
}

func ceilDiv(n, d int64) int64 {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
