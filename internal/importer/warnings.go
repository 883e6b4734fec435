package importer

import (
	"strings"

	"catalog-import-service/internal/models"
)

// RowWarning records a cell that was replaced by a safe default during
// cleaning. Warnings are informational and never fail a row.
type RowWarning struct {
	RowIndex int
	Field    models.TargetField
	Value    string
	Message  string
}

var zeroPrice = map[string]bool{"0": true, "0.0": true, "0.00": true, "0,00": true}

// CleaningWarnings lists the non-empty cells of row that did not parse
func CleaningWarnings(row models.CanonicalRow) []RowWarning {
	var warnings []RowWarning

	if p := strings.TrimSpace(row.Precio); p != "" && CleanPrice(p) == 0 && !zeroPrice[priceStrip.ReplaceAllString(p, "")] {
		warnings = append(warnings, RowWarning{
			RowIndex: row.RowIndex,
			Field:    models.FieldPrecio,
			Value:    row.Precio,
			Message:  "Unparseable price, using 0",
		})
	}
	if d := strings.TrimSpace(row.FechaCaducidad); d != "" && NormalizeDate(d) == nil {
		warnings = append(warnings, RowWarning{
			RowIndex: row.RowIndex,
			Field:    models.FieldFechaCaducidad,
			Value:    row.FechaCaducidad,
			Message:  "Invalid expiry date, treating as no expiry",
		})
	}
	if q := strings.TrimSpace(row.Cantidad); q != "" && !leadingInt.MatchString(q) {
		warnings = append(warnings, RowWarning{
			RowIndex: row.RowIndex,
			Field:    models.FieldCantidad,
			Value:    row.Cantidad,
			Message:  "Non-numeric quantity, using 0",
		})
	}

	return warnings
}
