package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
)

// ImportStatus represents the status of an upload or import run
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "PENDING"
	ImportStatusProcessing ImportStatus = "PROCESSING"
	ImportStatusCompleted  ImportStatus = "COMPLETED"
	ImportStatusFailed     ImportStatus = "FAILED"
)

// ImportUpload is one decoded spreadsheet. Its rows are stored separately and
// never modified after the upload is created.
type ImportUpload struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID   string         `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	FileName   string         `json:"fileName" gorm:"type:varchar(512);not null"`
	Format     ImportFormat   `json:"format" gorm:"type:varchar(8);not null"`
	SheetName  string         `json:"sheetName,omitempty" gorm:"type:varchar(255)"`
	Headers    datatypes.JSON `json:"headers" gorm:"type:jsonb"`
	RowCount   int            `json:"rowCount"`
	Status     ImportStatus   `json:"status" gorm:"type:varchar(32);not null"`
	UploadedBy *string        `json:"uploadedBy,omitempty" gorm:"type:varchar(255)"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// TableName returns the table name for the ImportUpload model
func (ImportUpload) TableName() string {
	return "import_uploads"
}

// ImportRawRow stores one spreadsheet line keyed by the original headers
type ImportRawRow struct {
	ID       uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string         `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	UploadID uuid.UUID      `json:"uploadId" gorm:"type:uuid;not null;index:idx_raw_rows_upload_row,unique"`
	RowIndex int            `json:"rowIndex" gorm:"not null;index:idx_raw_rows_upload_row,unique"`
	RawData  datatypes.JSON `json:"rawData" gorm:"type:jsonb;not null"`
}

// TableName returns the table name for the ImportRawRow model
func (ImportRawRow) TableName() string {
	return "import_raw_rows"
}

// MappingTemplate is a saved column mapping, usually one per supplier layout
type MappingTemplate struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    string          `json:"tenantId" gorm:"type:varchar(255);not null;index:idx_mapping_templates_tenant_name,unique"`
	Name        string          `json:"name" gorm:"type:varchar(255);not null;index:idx_mapping_templates_tenant_name,unique"`
	Description *string         `json:"description,omitempty" gorm:"type:text"`
	SupplierID  *string         `json:"supplierId,omitempty" gorm:"type:varchar(255);index"`
	Mapping     datatypes.JSON  `json:"mapping" gorm:"type:jsonb;not null"`
	CreatedBy   *string         `json:"createdBy,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	DeletedAt   *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// TableName returns the table name for the MappingTemplate model
func (MappingTemplate) TableName() string {
	return "mapping_templates"
}

// ImportRun is the persisted summary of one orchestrator invocation
type ImportRun struct {
	ID                     uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	TenantID               string         `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	UploadID               uuid.UUID      `json:"uploadId" gorm:"type:uuid;not null;index"`
	SupplierID             string         `json:"supplierId" gorm:"type:varchar(255);not null"`
	SalesCategory          SalesCategory  `json:"salesCategory" gorm:"type:varchar(32);not null"`
	Status                 ImportStatus   `json:"status" gorm:"type:varchar(32);not null"`
	Mapping                datatypes.JSON `json:"mapping" gorm:"type:jsonb"`
	OriginalRowCount       int            `json:"originalRowCount"`
	ConsolidatedGroupCount int            `json:"consolidatedGroupCount"`
	LotsCreated            int            `json:"lotsCreated"`
	ProductsCreated        int            `json:"productsCreated"`
	ManufacturersCreated   int            `json:"manufacturersCreated"`
	Errors                 datatypes.JSON `json:"errors" gorm:"type:jsonb"`
	FailureReason          *string        `json:"failureReason,omitempty" gorm:"type:text"`
	StartedBy              *string        `json:"startedBy,omitempty" gorm:"type:varchar(255)"`
	StartedAt              time.Time      `json:"startedAt"`
	FinishedAt             *time.Time     `json:"finishedAt,omitempty"`
	DurationMs             int64          `json:"durationMs"`
	CreatedAt              time.Time      `json:"createdAt"`
	UpdatedAt              time.Time      `json:"updatedAt"`
}

// TableName returns the table name for the ImportRun model
func (ImportRun) TableName() string {
	return "import_runs"
}
