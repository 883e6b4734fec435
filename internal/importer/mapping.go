package importer

import (
	"fmt"
	"strconv"
	"strings"

	"catalog-import-service/internal/models"
)

// ParseColumnMapping validates a caller-supplied mapping. Keys must be target
// fields, compared case-insensitively, and each field may appear once; entries
// with an empty source column are dropped.
func ParseColumnMapping(raw map[string]string) (models.ColumnMapping, error) {
	mapping := make(models.ColumnMapping, len(raw))
	keys := make(map[models.TargetField]string, len(raw))
	for key, column := range raw {
		field := models.TargetField(strings.TrimSpace(strings.ToLower(key)))
		if !field.IsValid() {
			return nil, fmt.Errorf("unknown target field %q", key)
		}
		if prev, ok := keys[field]; ok {
			a, b := prev, key
			if b < a {
				a, b = b, a
			}
			return nil, fmt.Errorf("target field %q is mapped twice (%q and %q)", field, a, b)
		}
		keys[field] = key
		if strings.TrimSpace(column) == "" {
			continue
		}
		mapping[field] = column
	}
	if len(mapping) == 0 {
		return nil, fmt.Errorf("mapping does not reference any source column")
	}
	return mapping, nil
}

// ApplyMapping projects a raw row onto the canonical fields. Lookup is exact on
// the header text; a missing mapping or a missing/nil value gives "".
func ApplyMapping(row models.RawRow, mapping models.ColumnMapping, ictx models.ImportContext) models.CanonicalRow {
	get := func(field models.TargetField) string {
		column, ok := mapping[field]
		if !ok {
			return ""
		}
		value, ok := row.RawData[column]
		if !ok {
			return ""
		}
		return ScalarString(value)
	}

	return models.CanonicalRow{
		RowIndex:       row.RowIndex,
		Code:           get(models.FieldCode),
		Fabricante:     get(models.FieldFabricante),
		Descripcion:    get(models.FieldDescripcion),
		Cantidad:       get(models.FieldCantidad),
		Precio:         get(models.FieldPrecio),
		FechaCaducidad: get(models.FieldFechaCaducidad),
		SupplierID:     ictx.SupplierID,
		SupplierName:   ictx.SupplierName,
		SalesCategory:  ictx.SalesCategory,
	}
}

// ApplyMappingAll maps every row, preserving input order
func ApplyMappingAll(rows []models.RawRow, mapping models.ColumnMapping, ictx models.ImportContext) []models.CanonicalRow {
	out := make([]models.CanonicalRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ApplyMapping(r, mapping, ictx))
	}
	return out
}

// ScalarString renders a decoded cell value as text. Floats use the shortest
// exact representation so 45292 stays "45292" rather than "45292.000000".
func ScalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
