package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LotStatus represents the availability of an inventory lot
type LotStatus string

const (
	LotStatusAvailable LotStatus = "available"
	LotStatusReserved  LotStatus = "reserved"
	LotStatusDepleted  LotStatus = "depleted"
)

// SalesCategory classifies lots for the storefront (regular stock vs. clearance)
type SalesCategory string

const (
	SalesCategoryRegular    SalesCategory = "regular"
	SalesCategoryNearExpiry SalesCategory = "near_expiry"
	SalesCategoryExpired    SalesCategory = "expired"
)

// IsValid reports whether the category is one of the known values
func (s SalesCategory) IsValid() bool {
	switch s {
	case SalesCategoryRegular, SalesCategoryNearExpiry, SalesCategoryExpired:
		return true
	}
	return false
}

// Manufacturer is resolved by exact name within a tenant
type Manufacturer struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    string          `json:"tenantId" gorm:"type:varchar(255);not null;index:idx_manufacturers_tenant_name,unique"`
	Name        string          `json:"name" gorm:"type:varchar(255);not null;index:idx_manufacturers_tenant_name,unique"`
	CountryCode string          `json:"countryCode" gorm:"type:varchar(2);not null"`
	CreatedBy   *string         `json:"createdBy,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	DeletedAt   *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// TableName returns the table name for the Manufacturer model
func (Manufacturer) TableName() string {
	return "manufacturers"
}

// Product is the global catalog entry, unique by SKU within a tenant.
// Products created from rows without a code get a generated SKU and IsPlaceholderSKU set.
type Product struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID         string          `json:"tenantId" gorm:"type:varchar(255);not null;index:idx_catalog_products_tenant_sku,unique"`
	GlobalSKU        string          `json:"globalSku" gorm:"type:varchar(255);not null;index:idx_catalog_products_tenant_sku,unique"`
	Description      string          `json:"description" gorm:"type:text;not null"`
	ManufacturerID   uuid.UUID       `json:"manufacturerId" gorm:"type:uuid;not null;index"`
	IsPlaceholderSKU bool            `json:"isPlaceholderSku"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	DeletedAt        *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`

	Manufacturer *Manufacturer `json:"manufacturer,omitempty" gorm:"foreignKey:ManufacturerID"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "catalog_products"
}

// ProductSupplier links a catalog product to the supplier that sells it
type ProductSupplier struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     string          `json:"tenantId" gorm:"type:varchar(255);not null;index:idx_product_suppliers_pair,unique"`
	ProductID    uuid.UUID       `json:"productId" gorm:"type:uuid;not null;index:idx_product_suppliers_pair,unique"`
	SupplierID   string          `json:"supplierId" gorm:"type:varchar(255);not null;index:idx_product_suppliers_pair,unique"`
	SupplierSKU  string          `json:"supplierSku" gorm:"type:varchar(255);not null"`
	SupplierName string          `json:"supplierName" gorm:"type:varchar(255)"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	DeletedAt    *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// TableName returns the table name for the ProductSupplier model
func (ProductSupplier) TableName() string {
	return "product_suppliers"
}

// ProductLot is a sellable quantity of one product from one supplier with a
// single price and expiry. Lots are never derived from source lot numbers.
type ProductLot struct {
	ID                uuid.UUID     `json:"id" gorm:"type:uuid;primary_key"`
	TenantID          string        `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	ProductSupplierID uuid.UUID     `json:"productSupplierId" gorm:"type:uuid;not null;index"`
	LotNumber         string        `json:"lotNumber" gorm:"type:varchar(64);not null"`
	Quantity          int           `json:"quantity" gorm:"not null"`
	UnitPrice         float64       `json:"unitPrice" gorm:"type:decimal(12,4);not null"`
	ExpiryDate        *time.Time    `json:"expiryDate,omitempty" gorm:"type:date"`
	Unit              string        `json:"unit" gorm:"type:varchar(16);not null"`
	CurrencyCode      string        `json:"currencyCode" gorm:"type:varchar(3);not null"`
	SalesCategory     SalesCategory `json:"salesCategory" gorm:"type:varchar(32);not null;index"`
	Status            LotStatus     `json:"status" gorm:"type:varchar(32);not null"`
	UploadID          *uuid.UUID    `json:"uploadId,omitempty" gorm:"type:uuid;index"`
	ImportRunID       *uuid.UUID    `json:"importRunId,omitempty" gorm:"type:uuid;index"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// TableName returns the table name for the ProductLot model
func (ProductLot) TableName() string {
	return "product_lots"
}
