package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/mamadbah2/daybook-sync/internal/config"
	"github.com/mamadbah2/daybook-sync/internal/domain/models"
)

const (
	restPrefix = "/rest/v1"

	tableDailyEntries     = "daily_entries"
	tableIncomes          = "daily_entry_incomes"
	tableReceipts         = "daily_entry_receipts"
	tableParameters       = "daily_entry_parameters"
	tableProductUsage     = "product_usage"
	tableProducts         = "products"
	tableIncomeSources    = "income_sources"
	tableReceiptTypes     = "receipt_types"
	tableCustomParameters = "custom_parameters"

	// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint hit.
	uniqueViolation = "23505"
)

// APIClient talks to a PostgREST-compatible endpoint exposing the back-office
// tables. It implements the entry submission, reference lookup and health
// probe capabilities used by the sync service.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds a remote API client using the provided configuration values.
func NewClient(cfg config.RemoteConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(base).
		SetHeader("apikey", cfg.APIKey).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &APIClient{httpClient: restyClient}
}

// apiError mirrors the PostgREST error payload.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

type createdRow struct {
	ID string `json:"id"`
}

// CreateDailyRecord inserts the primary day row and returns its id. A unique
// violation on (business_id, entry_date) is reported as
// models.ErrDuplicateRemoteRecord.
func (c *APIClient) CreateDailyRecord(ctx context.Context, record models.DailyRecord) (string, error) {
	body := make(map[string]any, len(record.Fields)+4)
	for key, value := range record.Fields {
		body[key] = value
	}
	body["business_id"] = record.BusinessID
	body["entry_date"] = record.EntryDate
	body["captured_at"] = record.CapturedAt.Format(time.RFC3339Nano)
	if record.UserID != "" {
		body["user_id"] = record.UserID
	}

	var created []createdRow
	if err := c.insert(ctx, tableDailyEntries, body, &created); err != nil {
		return "", err
	}
	if len(created) == 0 || created[0].ID == "" {
		return "", fmt.Errorf("%w: %s insert returned no id", models.ErrTransientSubmission, tableDailyEntries)
	}

	return created[0].ID, nil
}

// CreateIncomeRecords inserts the nested income rows in one request.
func (c *APIClient) CreateIncomeRecords(ctx context.Context, rows []models.IncomeRecord) error {
	return c.insertBatch(ctx, tableIncomes, len(rows), rows)
}

// CreateReceiptRecords inserts the nested receipt rows in one request.
func (c *APIClient) CreateReceiptRecords(ctx context.Context, rows []models.ReceiptRecord) error {
	return c.insertBatch(ctx, tableReceipts, len(rows), rows)
}

// CreateParameterValues inserts the nested custom parameter rows in one request.
func (c *APIClient) CreateParameterValues(ctx context.Context, rows []models.ParameterValue) error {
	return c.insertBatch(ctx, tableParameters, len(rows), rows)
}

// CreateProductUsage inserts the nested product usage rows in one request.
func (c *APIClient) CreateProductUsage(ctx context.Context, rows []models.ProductUsageRecord) error {
	return c.insertBatch(ctx, tableProductUsage, len(rows), rows)
}

// UpdateProductStock sets the product's current stock.
func (c *APIClient) UpdateProductStock(ctx context.Context, productID string, stock decimal.Decimal) error {
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+productID).
		SetBody(map[string]any{"current_stock": stock}).
		SetError(apiErr).
		Patch(restPrefix + "/" + tableProducts)
	if err != nil {
		return fmt.Errorf("%w: update stock of %s: %v", models.ErrTransientSubmission, productID, err)
	}

	return classify(tableProducts, resp, apiErr)
}

// FetchReferenceConfig loads the business' income sources, receipt types,
// custom parameters and products.
func (c *APIClient) FetchReferenceConfig(ctx context.Context, businessID string) (models.ReferenceConfig, error) {
	cfg := models.ReferenceConfig{BusinessID: businessID}

	if err := c.selectByBusiness(ctx, tableIncomeSources, businessID, &cfg.IncomeSources); err != nil {
		return models.ReferenceConfig{}, err
	}
	if err := c.selectByBusiness(ctx, tableReceiptTypes, businessID, &cfg.ReceiptTypes); err != nil {
		return models.ReferenceConfig{}, err
	}
	if err := c.selectByBusiness(ctx, tableCustomParameters, businessID, &cfg.CustomParameters); err != nil {
		return models.ReferenceConfig{}, err
	}
	if err := c.selectByBusiness(ctx, tableProducts, businessID, &cfg.Products); err != nil {
		return models.ReferenceConfig{}, err
	}

	cfg.FetchedAt = time.Now().UTC()
	return cfg, nil
}

// Probe reports whether the remote endpoint is reachable. Any HTTP answer
// below 500 counts as reachable.
func (c *APIClient) Probe(ctx context.Context) bool {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Head(restPrefix + "/")
	if err != nil {
		return false
	}
	return resp.StatusCode() < http.StatusInternalServerError
}

func (c *APIClient) insertBatch(ctx context.Context, table string, n int, rows any) error {
	if n == 0 {
		return nil
	}
	return c.insert(ctx, table, rows, nil)
}

func (c *APIClient) insert(ctx context.Context, table string, body any, result any) error {
	apiErr := new(apiError)

	req := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetError(apiErr)
	if result != nil {
		req.SetHeader("Prefer", "return=representation").SetResult(result)
	} else {
		req.SetHeader("Prefer", "return=minimal")
	}

	resp, err := req.Post(restPrefix + "/" + table)
	if err != nil {
		return fmt.Errorf("%w: insert into %s: %v", models.ErrTransientSubmission, table, err)
	}

	return classify(table, resp, apiErr)
}

func (c *APIClient) selectByBusiness(ctx context.Context, table, businessID string, result any) error {
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"business_id": "eq." + businessID,
			"select":      "*",
		}).
		SetResult(result).
		SetError(apiErr).
		Get(restPrefix + "/" + table)
	if err != nil {
		return fmt.Errorf("select %s for %s: %w", table, businessID, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("select %s for %s: remote api error: status=%d, code=%s, message=%s",
			table, businessID, resp.StatusCode(), apiErr.Code, apiErr.Message)
	}

	return nil
}

func classify(table string, resp *resty.Response, apiErr *apiError) error {
	if resp.StatusCode() < http.StatusBadRequest {
		return nil
	}

	// PostgREST answers 409 for several constraint classes; only a unique
	// violation (or a bare 409 from a proxy) means the row already exists.
	if apiErr.Code == uniqueViolation || (resp.StatusCode() == http.StatusConflict && apiErr.Code == "") {
		return fmt.Errorf("%s: %w", table, models.ErrDuplicateRemoteRecord)
	}

	return fmt.Errorf("%w: %s: remote api error: status=%d, code=%s, message=%s",
		models.ErrTransientSubmission, table, resp.StatusCode(), apiErr.Code, apiErr.Message)
}
