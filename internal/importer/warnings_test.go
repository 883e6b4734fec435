package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"catalog-import-service/internal/models"
)

func TestCleaningWarnings(t *testing.T) {
	row := canonical(4, "A1", "abc", "muchos", "2024-13-45")

	warnings := CleaningWarnings(row)

	fields := make([]models.TargetField, 0, len(warnings))
	for _, w := range warnings {
		assert.Equal(t, 4, w.RowIndex)
		fields = append(fields, w.Field)
	}
	assert.ElementsMatch(t, []models.TargetField{models.FieldPrecio, models.FieldFechaCaducidad, models.FieldCantidad}, fields)
}

func TestCleaningWarnings_CleanRow(t *testing.T) {
	assert.Empty(t, CleaningWarnings(canonical(1, "A1", "$0.00", "3", "2024-05-01")))
	assert.Empty(t, CleaningWarnings(canonical(2, "", "", "", "")), "blank cells are not warnings")
}
