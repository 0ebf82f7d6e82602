package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/daybook-sync/internal/config"
	"github.com/mamadbah2/daybook-sync/internal/domain/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.RemoteConfig{BaseURL: srv.URL + "/", APIKey: "secret", Timeout: 2 * time.Second})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestCreateDailyRecord(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/daily_entries", r.URL.Path)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &got))
		writeJSON(w, http.StatusCreated, []map[string]any{{"id": "rec-1"}})
	})

	id, err := client.CreateDailyRecord(context.Background(), models.DailyRecord{
		BusinessID: "biz-1",
		EntryDate:  "2024-05-01",
		Fields:     map[string]any{"register_total": "1520.40"},
		CapturedAt: time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	assert.Equal(t, "rec-1", id)
	assert.Equal(t, "biz-1", got["business_id"])
	assert.Equal(t, "2024-05-01", got["entry_date"])
	assert.Equal(t, "1520.40", got["register_total"])
	assert.NotContains(t, got, "user_id")
}

func TestCreateDailyRecord_UniqueViolationIsDuplicate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"code":    "23505",
			"message": `duplicate key value violates unique constraint "daily_entries_business_id_entry_date_key"`,
		})
	})

	_, err := client.CreateDailyRecord(context.Background(), models.DailyRecord{BusinessID: "biz-1", EntryDate: "2024-05-01"})

	assert.ErrorIs(t, err, models.ErrDuplicateRemoteRecord)
	assert.NotErrorIs(t, err, models.ErrTransientSubmission)
}

func TestCreateDailyRecord_ForeignKeyConflictIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"code": "23503", "message": "violates foreign key"})
	})

	_, err := client.CreateDailyRecord(context.Background(), models.DailyRecord{BusinessID: "biz-1", EntryDate: "2024-05-01"})

	assert.ErrorIs(t, err, models.ErrTransientSubmission)
	assert.NotErrorIs(t, err, models.ErrDuplicateRemoteRecord)
}

func TestCreateDailyRecord_ServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream down"})
	})

	_, err := client.CreateDailyRecord(context.Background(), models.DailyRecord{BusinessID: "biz-1", EntryDate: "2024-05-01"})

	assert.ErrorIs(t, err, models.ErrTransientSubmission)
}

func TestCreateDailyRecord_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(config.RemoteConfig{BaseURL: srv.URL, Timeout: time.Second})

	_, err := client.CreateDailyRecord(context.Background(), models.DailyRecord{BusinessID: "biz-1", EntryDate: "2024-05-01"})

	assert.ErrorIs(t, err, models.ErrTransientSubmission)
}

func TestNestedInserts(t *testing.T) {
	calls := map[string]int{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls[r.Method+" "+r.URL.Path]++
		if r.Method == http.MethodPatch {
			assert.Equal(t, "eq.flour", r.URL.Query().Get("id"))
		}
		w.WriteHeader(http.StatusCreated)
	})
	ctx := context.Background()

	require.NoError(t, client.CreateIncomeRecords(ctx, []models.IncomeRecord{{DailyRecordID: "rec-1", IncomeSourceID: "card", Amount: decimal.NewFromInt(5)}}))
	require.NoError(t, client.CreateReceiptRecords(ctx, nil))
	require.NoError(t, client.CreateParameterValues(ctx, []models.ParameterValue{{DailyRecordID: "rec-1", ParameterID: "covers", Value: decimal.NewFromInt(40)}}))
	require.NoError(t, client.CreateProductUsage(ctx, []models.ProductUsageRecord{{DailyRecordID: "rec-1", ProductID: "flour"}}))
	require.NoError(t, client.UpdateProductStock(ctx, "flour", decimal.NewFromInt(11)))

	assert.Equal(t, map[string]int{
		"POST /rest/v1/daily_entry_incomes":    1,
		"POST /rest/v1/daily_entry_parameters": 1,
		"POST /rest/v1/product_usage":          1,
		"PATCH /rest/v1/products":              1,
	}, calls)
}

func TestFetchReferenceConfig(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.biz-1", r.URL.Query().Get("business_id"))
		switch r.URL.Path {
		case "/rest/v1/income_sources":
			writeJSON(w, http.StatusOK, []map[string]any{{
				"id": "card", "name": "Card", "settlement_type": "monthly",
				"commission_rate": "2", "day_of_month": 5,
			}})
		case "/rest/v1/products":
			writeJSON(w, http.StatusOK, []map[string]any{{"id": "flour", "name": "Flour"}})
		default:
			writeJSON(w, http.StatusOK, []map[string]any{})
		}
	})

	cfg, err := client.FetchReferenceConfig(context.Background(), "biz-1")

	require.NoError(t, err)
	assert.Equal(t, "biz-1", cfg.BusinessID)
	require.Len(t, cfg.IncomeSources, 1)
	assert.Equal(t, models.SettlementMonthly, cfg.IncomeSources[0].SettlementType)
	require.NotNil(t, cfg.IncomeSources[0].DayOfMonth)
	assert.Equal(t, 5, *cfg.IncomeSources[0].DayOfMonth)
	assert.Equal(t, "2", cfg.IncomeSources[0].CommissionRate.String())
	require.Len(t, cfg.Products, 1)
	assert.False(t, cfg.FetchedAt.IsZero())
}

func TestFetchReferenceConfig_Error(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "JWT expired"})
	})

	_, err := client.FetchReferenceConfig(context.Background(), "biz-1")

	assert.ErrorContains(t, err, "status=401")
}

func TestProbe(t *testing.T) {
	up := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	down := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	assert.True(t, up.Probe(context.Background()))
	assert.False(t, down.Probe(context.Background()))
}
