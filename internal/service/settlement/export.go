package settlement

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/daybook-sync/internal/domain/models"
)

// ErrExportDisabled is returned when no spreadsheet is configured.
var ErrExportDisabled = errors.New("settlement export is not configured")

// RowWriter is the spreadsheet capability the exporter needs.
type RowWriter interface {
	AppendRows(ctx context.Context, sheetRange string, rows [][]interface{}) error
}

// Exporter appends projected settlements to a spreadsheet, one row per
// settled income, ordered by settlement date.
type Exporter struct {
	writer     RowWriter
	sheetRange string
	logger     *zap.Logger
}

// NewExporter wires an exporter. A nil writer yields an exporter that reports
// ErrExportDisabled.
func NewExporter(writer RowWriter, sheetRange string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{writer: writer, sheetRange: sheetRange, logger: logger}
}

// Export writes the buckets and returns the number of rows appended.
func (e *Exporter) Export(ctx context.Context, businessID string, buckets map[string][]models.SettledIncome) (int, error) {
	if e == nil || e.writer == nil {
		return 0, ErrExportDisabled
	}

	rows := Rows(businessID, buckets)
	if len(rows) == 0 {
		return 0, nil
	}

	if err := e.writer.AppendRows(ctx, e.sheetRange, rows); err != nil {
		return 0, fmt.Errorf("export settlements for %s: %w", businessID, err)
	}

	e.logger.Info("settlement projection exported",
		zap.String("business_id", businessID),
		zap.Int("rows", len(rows)),
		zap.Int("dates", len(buckets)))

	return len(rows), nil
}

// Rows flattens buckets into spreadsheet rows:
// business, settlement date, entry date, source id, source name, gross, fee, net.
func Rows(businessID string, buckets map[string][]models.SettledIncome) [][]interface{} {
	var rows [][]interface{}
	for _, date := range SortedDates(buckets) {
		for _, item := range buckets[date] {
			rows = append(rows, []interface{}{
				businessID,
				date,
				item.OriginalEntryDate.Format(models.DateLayout),
				item.SourceID,
				item.SourceName,
				item.GrossAmount.StringFixed(moneyPlaces),
				item.FeeAmount.StringFixed(moneyPlaces),
				item.NetAmount.StringFixed(moneyPlaces),
			})
		}
	}
	return rows
}
