package services

import (
	"github.com/sirupsen/logrus"

	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/models"
)

// ImportObserver receives progress notifications from an import run.
// Calls happen on the run's goroutine, in order.
type ImportObserver interface {
	RunStarted(ictx models.ImportContext, rowCount int)
	RowCleaned(ictx models.ImportContext, warning importer.RowWarning)
	Consolidated(ictx models.ImportContext, stats importer.ConsolidationStats)
	GroupSucceeded(ictx models.ImportContext, group models.ConsolidatedGroup, lot *models.ProductLot)
	GroupFailed(ictx models.ImportContext, group models.ConsolidatedGroup, err error)
	RunFinished(ictx models.ImportContext, result *models.ImportResult, err error)
}

// LogObserver writes import progress to logrus
type LogObserver struct {
	logger *logrus.Entry
}

// NewLogObserver creates an observer that logs through logger
func NewLogObserver(logger *logrus.Entry) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) fields(ictx models.ImportContext) *logrus.Entry {
	return o.logger.WithFields(logrus.Fields{
		"tenantId":   ictx.TenantID,
		"uploadId":   ictx.UploadID,
		"runId":      ictx.RunID,
		"supplierId": ictx.SupplierID,
	})
}

func (o *LogObserver) RunStarted(ictx models.ImportContext, rowCount int) {
	o.fields(ictx).WithField("rows", rowCount).Info("Catalog import started")
}

func (o *LogObserver) RowCleaned(ictx models.ImportContext, w importer.RowWarning) {
	o.fields(ictx).WithFields(logrus.Fields{
		"row":   w.RowIndex,
		"field": w.Field,
		"value": w.Value,
	}).Debug(w.Message)
}

func (o *LogObserver) Consolidated(ictx models.ImportContext, stats importer.ConsolidationStats) {
	entry := o.fields(ictx).WithFields(logrus.Fields{
		"rows":       stats.InputRows,
		"groups":     stats.Groups,
		"mergedRows": stats.MergedRows,
		"quantity":   stats.TotalQty,
	})
	entry.Info("Rows consolidated")
	if stats.EmptyCodeMix > 0 {
		entry.WithField("emptyCodeGroups", stats.EmptyCodeMix).
			Warn("Rows without a code were merged because price and expiry matched")
	}
}

func (o *LogObserver) GroupSucceeded(ictx models.ImportContext, group models.ConsolidatedGroup, lot *models.ProductLot) {
	o.fields(ictx).WithFields(logrus.Fields{
		"lotId":      lot.ID,
		"lotNumber":  lot.LotNumber,
		"quantity":   lot.Quantity,
		"sourceRows": group.SourceRows,
	}).Debug("Lot created")
}

func (o *LogObserver) GroupFailed(ictx models.ImportContext, group models.ConsolidatedGroup, err error) {
	o.fields(ictx).WithFields(logrus.Fields{
		"code":       group.Row.Code,
		"sourceRows": group.SourceRows,
	}).WithError(err).Warn("Group import failed")
}

func (o *LogObserver) RunFinished(ictx models.ImportContext, result *models.ImportResult, err error) {
	entry := o.fields(ictx).WithFields(logrus.Fields{
		"lotsCreated":          result.LotsCreated,
		"productsCreated":      result.ProductsCreated,
		"manufacturersCreated": result.ManufacturersCreated,
		"errors":               len(result.Errors),
		"processingMs":         result.ProcessingMs,
	})
	if err != nil {
		entry.WithError(err).Error("Catalog import aborted")
		return
	}
	entry.Info("Catalog import finished")
}

// NopObserver ignores every notification
type NopObserver struct{}

func (NopObserver) RunStarted(models.ImportContext, int) {}
func (NopObserver) RowCleaned(models.ImportContext, importer.RowWarning) {}
func (NopObserver) Consolidated(models.ImportContext, importer.ConsolidationStats) {}
func (NopObserver) GroupSucceeded(models.ImportContext, models.ConsolidatedGroup, *models.ProductLot) {}
func (NopObserver) GroupFailed(models.ImportContext, models.ConsolidatedGroup, error) {}
func (NopObserver) RunFinished(models.ImportContext, *models.ImportResult, error) {}
