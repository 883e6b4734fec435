package importer

import (
	"strings"

	"catalog-import-service/internal/models"
)

// ConsolidationStats describes how rows collapsed into groups
type ConsolidationStats struct {
	InputRows    int
	Groups       int
	MergedRows   int
	TotalQty     int
	EmptyCodeMix int // groups with an empty code that absorbed more than one row
}

// KeyFor computes the lot identity of a canonical row
func KeyFor(row models.CanonicalRow) models.ConsolidationKey {
	key := models.ConsolidationKey{
		Code:  strings.TrimSpace(row.Code),
		Price: CleanPrice(row.Precio),
	}
	if d := NormalizeDate(row.FechaCaducidad); d != nil {
		key.Date = *d
		key.HasDate = true
	}
	return key
}

// Consolidate merges rows that describe the same lot (same trimmed code,
// cleaned price and expiry date). Groups come out in the order their key was
// first seen; quantities are summed and contributing row indexes kept in input
// order.
//
// Rows with an empty code share a key whenever price and date match, so
// unrelated uncoded rows can merge. That is kept as-is and counted in
// ConsolidationStats.EmptyCodeMix for the caller to surface.
func Consolidate(rows []models.CanonicalRow) ([]models.ConsolidatedGroup, ConsolidationStats) {
	index := make(map[models.ConsolidationKey]int, len(rows))
	groups := make([]models.ConsolidatedGroup, 0, len(rows))
	stats := ConsolidationStats{InputRows: len(rows)}

	for _, row := range rows {
		key := KeyFor(row)
		qty := ParseQuantity(row.Cantidad)
		stats.TotalQty += qty

		if i, seen := index[key]; seen {
			groups[i].Quantity += qty
			groups[i].SourceRows = append(groups[i].SourceRows, row.RowIndex)
			stats.MergedRows++
			continue
		}

		g := models.ConsolidatedGroup{
			Row:        row,
			Quantity:   qty,
			Price:      key.Price,
			SourceRows: []int{row.RowIndex},
		}
		if key.HasDate {
			d := key.Date
			g.ExpiryDate = &d
		}
		index[key] = len(groups)
		groups = append(groups, g)
	}

	for _, g := range groups {
		if strings.TrimSpace(g.Row.Code) == "" && len(g.SourceRows) > 1 {
			stats.EmptyCodeMix++
		}
	}
	stats.Groups = len(groups)
	return groups, stats
}
