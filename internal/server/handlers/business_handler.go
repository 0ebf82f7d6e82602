package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/daybook-sync/internal/domain/models"
	"github.com/mamadbah2/daybook-sync/internal/service/settlement"
)

// ReferenceService reads cached or fresh reference configuration.
type ReferenceService interface {
	Refresh(ctx context.Context, businessID string) (models.ReferenceConfig, bool, error)
	Load(ctx context.Context, businessID string) (models.ReferenceConfig, error)
}

// SettlementExporter writes a settlement projection out.
type SettlementExporter interface {
	Export(ctx context.Context, businessID string, buckets map[string][]models.SettledIncome) (int, error)
}

// BusinessHandler serves per-business reference data and settlement projections.
type BusinessHandler struct {
	reference ReferenceService
	exporter  SettlementExporter
	logger    *zap.Logger
}

// NewBusinessHandler constructs the handler. exporter may be nil.
func NewBusinessHandler(reference ReferenceService, exporter SettlementExporter, logger *zap.Logger) *BusinessHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusinessHandler{reference: reference, exporter: exporter, logger: logger}
}

// Reference returns the business' reference configuration.
func (h *BusinessHandler) Reference(c *gin.Context) {
	businessID := c.Param("businessID")

	var (
		cfg   models.ReferenceConfig
		stale bool
		err   error
	)
	if c.Query("refresh") == "true" {
		cfg, stale, err = h.reference.Refresh(c.Request.Context(), businessID)
	} else {
		cfg, err = h.reference.Load(c.Request.Context(), businessID)
	}

	switch {
	case errors.Is(err, models.ErrReferenceConfigNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no reference config for business"})
		return
	case err != nil:
		h.logger.Error("failed to read reference config", zap.String("business_id", businessID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "reference config unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"config": cfg, "stale": stale})
}

type incomeLineRequest struct {
	IncomeSourceID string          `json:"income_source_id" binding:"required"`
	EntryDate      string          `json:"entry_date" binding:"required"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
}

type settlementRequest struct {
	Entries []incomeLineRequest `json:"entries" binding:"dive"`
}

type settlementBucket struct {
	Date  string                 `json:"date"`
	Items []models.SettledIncome `json:"items"`
	Gross decimal.Decimal        `json:"gross"`
	Fee   decimal.Decimal        `json:"fee"`
	Net   decimal.Decimal        `json:"net"`
}

// Settlements projects income entries onto settlement dates using the cached
// income sources. With export=true the projection is also appended to the
// settlement spreadsheet.
func (h *BusinessHandler) Settlements(c *gin.Context) {
	businessID := c.Param("businessID")

	var req settlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	entries := make([]models.IncomeEntry, 0, len(req.Entries))
	for _, line := range req.Entries {
		day, err := time.Parse(models.DateLayout, line.EntryDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "entry_date must use YYYY-MM-DD"})
			return
		}
		entries = append(entries, models.IncomeEntry{
			IncomeSourceID: line.IncomeSourceID,
			EntryDate:      day,
			GrossAmount:    line.GrossAmount,
		})
	}

	cfg, err := h.reference.Load(c.Request.Context(), businessID)
	if err != nil {
		if errors.Is(err, models.ErrReferenceConfigNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no reference config for business"})
			return
		}
		h.logger.Error("failed to load income sources", zap.String("business_id", businessID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "income sources unavailable"})
		return
	}

	buckets := settlement.CalculateSettledIncome(entries, cfg.IncomeSources)

	out := make([]settlementBucket, 0, len(buckets))
	for _, date := range settlement.SortedDates(buckets) {
		gross, fee, net := settlement.Totals(buckets[date])
		out = append(out, settlementBucket{Date: date, Items: buckets[date], Gross: gross, Fee: fee, Net: net})
	}

	resp := gin.H{"business_id": businessID, "settlements": out}

	if c.Query("export") == "true" {
		if h.exporter == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": settlement.ErrExportDisabled.Error()})
			return
		}
		rows, err := h.exporter.Export(c.Request.Context(), businessID, buckets)
		if err != nil {
			if errors.Is(err, settlement.ErrExportDisabled) {
				c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
				return
			}
			h.logger.Error("settlement export failed", zap.String("business_id", businessID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "settlement export failed"})
			return
		}
		resp["exported_rows"] = rows
	}

	c.JSON(http.StatusOK, resp)
}
