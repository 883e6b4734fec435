package models

import (
	"github.com/google/uuid"
)

// TargetField is one of the fixed canonical columns a spreadsheet can be mapped onto
type TargetField string

const (
	FieldCode           TargetField = "code"
	FieldFabricante     TargetField = "fabricante"
	FieldDescripcion    TargetField = "descripcion"
	FieldCantidad       TargetField = "cantidad"
	FieldPrecio         TargetField = "precio"
	FieldFechaCaducidad TargetField = "fecha_caducidad"
)

// TargetFields lists the canonical columns in template order
var TargetFields = []TargetField{
	FieldCode,
	FieldFabricante,
	FieldDescripcion,
	FieldCantidad,
	FieldPrecio,
	FieldFechaCaducidad,
}

// IsValid reports whether f is a known target field
func (f TargetField) IsValid() bool {
	for _, t := range TargetFields {
		if t == f {
			return true
		}
	}
	return false
}

// ColumnMapping maps a target field to the source column header it is read from
type ColumnMapping map[TargetField]string

// RawRow is one spreadsheet line as handed to the pipeline
type RawRow struct {
	RowIndex int            `json:"rowIndex"`
	RawData  map[string]any `json:"rawData"`
}

// CanonicalRow is a RawRow after the column mapping has been applied.
// Every field is present; unmapped or missing source values are "".
type CanonicalRow struct {
	RowIndex       int           `json:"rowIndex"`
	Code           string        `json:"code"`
	Fabricante     string        `json:"fabricante"`
	Descripcion    string        `json:"descripcion"`
	Cantidad       string        `json:"cantidad"`
	Precio         string        `json:"precio"`
	FechaCaducidad string        `json:"fechaCaducidad"`
	SupplierID     string        `json:"supplierId"`
	SupplierName   string        `json:"supplierName"`
	SalesCategory  SalesCategory `json:"salesCategory"`
}

// ConsolidationKey identifies rows that describe the same physical lot
type ConsolidationKey struct {
	Code    string
	Price   float64
	Date    string
	HasDate bool
}

// ConsolidatedGroup is one lot-to-be: the first row seen for a key plus the
// summed quantity of every row sharing that key
type ConsolidatedGroup struct {
	Row        CanonicalRow `json:"row"`
	Quantity   int          `json:"quantity"`
	Price      float64      `json:"price"`
	ExpiryDate *string      `json:"expiryDate"`
	SourceRows []int        `json:"sourceRows"`
}

// ImportContext carries the request-scoped values that apply to every row of a run
type ImportContext struct {
	TenantID      string
	UploadID      uuid.UUID
	RunID         uuid.UUID
	SupplierID    string
	SupplierName  string
	SalesCategory SalesCategory
	UserID        string
}

// GroupError reports a consolidated group that could not be imported
type GroupError struct {
	SourceRows []int  `json:"sourceRows"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Group error codes
const (
	GroupErrorEntityResolution = "ENTITY_RESOLUTION_FAILED"
	GroupErrorLotCreation      = "LOT_CREATION_FAILED"
)

// ImportResult is the outcome of one import run
type ImportResult struct {
	UploadID               uuid.UUID    `json:"uploadId"`
	RunID                  uuid.UUID    `json:"runId"`
	LotsCreated            int          `json:"lotsCreated"`
	ProductsCreated        int          `json:"productsCreated"`
	ManufacturersCreated   int          `json:"manufacturersCreated"`
	Errors                 []GroupError `json:"errors"`
	OriginalRowCount       int          `json:"originalRowCount"`
	ConsolidatedGroupCount int          `json:"consolidatedGroupCount"`
	ProcessingMs           int64        `json:"processingMs"`
}

// ImportRequest is the body of POST /catalog/imports
type ImportRequest struct {
	UploadID      string            `json:"uploadId"`
	Mappings      map[string]string `json:"mappings"`
	TemplateID    string            `json:"templateId"`
	SupplierID    string            `json:"supplierId"`
	SupplierName  string            `json:"supplierName"`
	SalesCategory string            `json:"salesCategory"`
}

// UploadSummary is returned after a spreadsheet has been decoded and stored
type UploadSummary struct {
	Upload  ImportUpload `json:"upload"`
	Headers []string     `json:"headers"`
	Preview []RawRow     `json:"preview,omitempty"`
}

// MappingTemplateRequest is the body for creating or updating a mapping template
type MappingTemplateRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description *string           `json:"description"`
	SupplierID  *string           `json:"supplierId"`
	Mapping     map[string]string `json:"mapping" binding:"required"`
}

// ImportTemplateColumn defines a column in the downloadable import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, date
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity  string                 `json:"entity"`
	Version string                 `json:"version"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// CatalogImportTemplate returns the template describing the six target columns
func CatalogImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "catalog_lots",
		Version: "1.0",
		Columns: []ImportTemplateColumn{
			{Name: string(FieldCode), Description: "Supplier product code / global SKU", Required: false, Type: "string", Example: "JER-5ML-001"},
			{Name: string(FieldFabricante), Description: "Manufacturer name - created if not found", Required: false, Type: "string", Example: "BD Medical"},
			{Name: string(FieldDescripcion), Description: "Product description", Required: false, Type: "string", Example: "Jeringa 5ml con aguja 21G"},
			{Name: string(FieldCantidad), Description: "Units in this lot", Required: true, Type: "number", Example: "120"},
			{Name: string(FieldPrecio), Description: "Unit price, currency symbols are ignored", Required: true, Type: "number", Example: "$16.00"},
			{Name: string(FieldFechaCaducidad), Description: "Expiry date (YYYY-MM-DD or DD/MM/YYYY)", Required: false, Type: "date", Example: "2026-05-01"},
		},
	}
}

// ErrorResponse is the error envelope returned by every handler
type ErrorResponse struct {
	Success bool          `json:"success"`
	Error   Error         `json:"error"`
	Data    *ImportResult `json:"data,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// SuccessResponse wraps successful payloads
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message *string     `json:"message,omitempty"`
}

// ImportedLot summarizes a lot created by a run, for event publication
type ImportedLot struct {
	LotID       uuid.UUID `json:"lotId"`
	LotNumber   string    `json:"lotNumber"`
	ProductID   uuid.UUID `json:"productId"`
	SKU         string    `json:"sku"`
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
}
