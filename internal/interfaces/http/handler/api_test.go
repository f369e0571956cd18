package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	appleakage "github.com/spendaudit/backend/internal/application/leakage"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/infrastructure/export"
	csvimport "github.com/spendaudit/backend/internal/infrastructure/import"
	"github.com/spendaudit/backend/internal/infrastructure/lock"
	"github.com/spendaudit/backend/internal/infrastructure/persistence"
	"github.com/spendaudit/backend/internal/infrastructure/reference"
	"github.com/spendaudit/backend/internal/interfaces/http/dto"
	"github.com/spendaudit/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var setupValidatorOnce sync.Once

var apiNow = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

// recordingImporter captures the upload handed to the importer
type recordingImporter struct {
	body   string
	format export.Format
	dryRun bool
}

func (r *recordingImporter) Import(_ context.Context, rd io.Reader, format export.Format, dryRun bool) (*csvimport.ImportResult, error) {
	b, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	r.body, r.format, r.dryRun = string(b), format, dryRun
	return &csvimport.ImportResult{DryRun: dryRun, TotalRows: 1, ValidRows: 1}, nil
}

type testAPI struct {
	engine   *gin.Engine
	importer *recordingImporter
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	setupValidatorOnce.Do(middleware.SetupValidator)

	refs := reference.NewMemoryProvider(reference.Dataset{
		RateCards: []leakage.RateCard{{
			ID:          "RC-1",
			Vendor:      "FastFreight",
			Route:       "MUM-PUN",
			VehicleType: "32ft",
			RatePerKm:   decimal.NewFromInt(10),
			ValidFrom:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
	})
	cases := persistence.NewInMemoryCaseRepository()
	results := persistence.NewInMemoryResultRepository()
	locker := lock.NewLocalLocker()
	clock := func() time.Time { return apiNow }

	leakageSvc := appleakage.NewLeakageService(
		leakage.NewReconciliationService(refs, leakage.DefaultThresholds(), leakage.WithClock(clock)),
		leakage.NewClassifier(leakage.DefaultCasePolicy()),
		results, cases,
		appleakage.WithLocker(locker),
		appleakage.WithNow(clock),
	)
	caseSvc := appleakage.NewCaseService(cases, locker, appleakage.WithCaseClock(clock))
	analytics := appleakage.NewAnalyticsService(cases, leakage.DefaultThresholds())

	api := &testAPI{engine: gin.New(), importer: &recordingImporter{}}
	api.engine.Use(middleware.RequestID(), middleware.Actor())

	invoices := NewInvoiceHandler(leakageSvc, 2)
	discrepancies := NewDiscrepancyHandler(leakageSvc)
	caseH := NewCaseHandler(caseSvc)
	analyticsH := NewAnalyticsHandler(analytics)
	ledger := NewLedgerHandler(api.importer)

	v1 := api.engine.Group("/api/v1")
	v1.POST("/invoices", invoices.Submit)
	v1.POST("/invoices/batch", invoices.SubmitBatch)
	v1.POST("/audit-scans", invoices.AuditScan)
	v1.GET("/discrepancies", discrepancies.List)
	v1.GET("/discrepancies/export", discrepancies.Export)
	v1.GET("/discrepancies/:id", discrepancies.GetByID)
	v1.POST("/discrepancies/:id/case", discrepancies.OpenCase)
	v1.GET("/cases", caseH.List)
	v1.GET("/cases/export", caseH.Export)
	v1.GET("/cases/number/:number", caseH.GetByNumber)
	v1.GET("/cases/:id", caseH.GetByID)
	v1.POST("/cases/:id/transitions", caseH.Transition)
	v1.PUT("/cases/:id/assignee", caseH.Assign)
	v1.POST("/cases/:id/evidence", caseH.AddEvidence)
	v1.POST("/cases/:id/comments", caseH.AddComment)
	v1.POST("/cases/:id/verification", caseH.ResolveVerification)
	v1.POST("/cases/:id/recovery", caseH.MarkRecovered)
	v1.GET("/analytics/dashboard", analyticsH.Dashboard)
	v1.GET("/analytics/vendors", analyticsH.Vendors)
	v1.GET("/rules", analyticsH.Rules)
	v1.POST("/ledger/payments/import", ledger.Import)
	return api
}

func (a *testAPI) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	require.True(t, envelope.Success, w.Body.String())
	return envelope.Data
}

func tripRequest(number, kms, amount string) map[string]any {
	return map[string]any{
		"invoice_number":  number,
		"vendor":          "FastFreight",
		"domain":          "logistics",
		"invoice_date":    "2024-03-15",
		"invoiced_amount": amount,
		"currency":        "INR",
		"logistics": map[string]any{
			"route":          "MUM-PUN",
			"vehicle_type":   "32ft",
			"trip_sheet_kms": kms,
		},
	}
}

// submitFlagged submits an overbilled trip and returns the opened case
func (a *testAPI) submitFlagged(t *testing.T, number string) appleakage.CaseResponse {
	t.Helper()
	w := a.do(http.MethodPost, "/api/v1/invoices", tripRequest(number, "100", "1500"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sub := decodeData[appleakage.SubmissionResult](t, w)
	require.NotNil(t, sub.Case)
	return *sub.Case
}

func TestInvoiceHandler_Submit(t *testing.T) {
	api := newTestAPI(t)

	t.Run("overbilled trip opens a case", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/invoices", tripRequest("FF-1", "100", "1500"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		sub := decodeData[appleakage.SubmissionResult](t, w)
		require.NotNil(t, sub.Result)
		assert.True(t, sub.Result.ExpectedAmount.Equal(decimal.NewFromInt(1000)))
		assert.True(t, sub.Result.Discrepancy.Equal(decimal.NewFromInt(500)))
		require.NotNil(t, sub.Case)
		assert.Equal(t, "new", sub.Case.Status)
	})

	t.Run("compliant trip opens nothing", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/invoices", tripRequest("FF-2", "100", "1000"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		sub := decodeData[appleakage.SubmissionResult](t, w)
		assert.Nil(t, sub.Case)
	})

	t.Run("unknown domain is rejected", func(t *testing.T) {
		req := tripRequest("FF-3", "100", "1000")
		req["domain"] = "catering"
		w := api.do(http.MethodPost, "/api/v1/invoices", req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "domain", resp.Error.Details[0].Field)
	})

	t.Run("negative amount is rejected", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/invoices", tripRequest("FF-4", "100", "-5"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad date is rejected", func(t *testing.T) {
		req := tripRequest("FF-5", "100", "1000")
		req["invoice_date"] = "15/03/2024"
		w := api.do(http.MethodPost, "/api/v1/invoices", req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing payload is a domain validation error", func(t *testing.T) {
		req := tripRequest("FF-6", "100", "1000")
		delete(req, "logistics")
		w := api.do(http.MethodPost, "/api/v1/invoices", req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/invoices", `{"invoice_number":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeResponse(t, w).Error.Code)
	})
}

func TestInvoiceHandler_Batch(t *testing.T) {
	api := newTestAPI(t)

	t.Run("reports each invoice", func(t *testing.T) {
		bad := tripRequest("B-2", "100", "1000")
		bad["vendor"] = "UnknownCarrier"
		w := api.do(http.MethodPost, "/api/v1/invoices/batch", map[string]any{
			"invoices": []any{tripRequest("B-1", "100", "1500"), bad},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		items := decodeData[[]appleakage.BatchItem](t, w)
		require.Len(t, items, 2)
		assert.Equal(t, "B-1", items[0].InvoiceNumber)
		require.NotNil(t, items[0].Result)
		assert.NotNil(t, items[0].Case)
		assert.Equal(t, 1, items[1].Index)
	})

	t.Run("over the batch limit", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/invoices/batch", map[string]any{
			"invoices": []any{
				tripRequest("L-1", "100", "1000"),
				tripRequest("L-2", "100", "1000"),
				tripRequest("L-3", "100", "1000"),
			},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invoices", decodeResponse(t, w).Error.Details[0].Field)
	})

	t.Run("bad date rejects the batch", func(t *testing.T) {
		bad := tripRequest("D-2", "100", "1000")
		bad["invoice_date"] = "yesterday"
		w := api.do(http.MethodPost, "/api/v1/invoices/batch", map[string]any{
			"invoices": []any{tripRequest("D-1", "100", "1000"), bad},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invoices[1].invoice_date", decodeResponse(t, w).Error.Details[0].Field)
	})

	t.Run("empty batch", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/invoices/batch", map[string]any{"invoices": []any{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestInvoiceHandler_AuditScan(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/audit-scans", map[string]any{
		"invoices": []any{tripRequest("S-1", "100", "1500"), tripRequest("S-2", "100", "1000")},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	scan := decodeData[appleakage.AuditScan](t, w)
	assert.True(t, strings.HasPrefix(scan.ScanID, "SCAN-"))
	assert.Equal(t, 2, scan.Total)
	assert.Equal(t, 2, scan.Evaluated)
	assert.Equal(t, 1, scan.CasesOpened)
	assert.True(t, scan.TotalLeakage.Equal(decimal.NewFromInt(500)))
}

func TestDiscrepancyHandler(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodPost, "/api/v1/invoices", tripRequest("R-1", "100", "1000"))
	require.Equal(t, http.StatusCreated, w.Code)
	compliant := decodeData[appleakage.SubmissionResult](t, w).Result
	api.submitFlagged(t, "R-2")

	t.Run("list with meta", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/discrepancies?domain=logistics&page_size=1", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(2), resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.TotalPages)
	})

	t.Run("invalid from date", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/discrepancies?from=01-01-2024", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "from", decodeResponse(t, w).Error.Details[0].Field)
	})

	t.Run("get by id", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/discrepancies/"+compliant.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		got := decodeData[leakage.DiscrepancyResult](t, w)
		assert.Equal(t, "R-1", got.InvoiceNumber)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/discrepancies/2f1e5c7a-1b2c-4d3e-8f90-a1b2c3d4e5f6", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("opening a case on a compliant result fails", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/discrepancies/"+compliant.ID.String()+"/case", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("csv export", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/discrepancies/export?format=csv", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment;")
		lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
		assert.Len(t, lines, 3)
	})
}

func TestCaseHandler_Lifecycle(t *testing.T) {
	api := newTestAPI(t)
	opened := api.submitFlagged(t, "C-1")
	base := "/api/v1/cases/" + opened.ID.String()

	transition := func(to string) *httptest.ResponseRecorder {
		return api.do(http.MethodPost, base+"/transitions", map[string]any{"to": to, "note": "step"}, middleware.ActorHeader, "analyst@corp")
	}

	for _, to := range []string{"triaged", "investigating", "pending_approval", "confirmed", "recovery_initiated"} {
		w := transition(to)
		require.Equal(t, http.StatusOK, w.Code, "%s: %s", to, w.Body.String())
		assert.Equal(t, to, decodeData[appleakage.CaseResponse](t, w).Status)
	}

	t.Run("recovered only through the recovery endpoint", func(t *testing.T) {
		w := transition("recovered")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidTransition, decodeResponse(t, w).Error.Code)
	})

	t.Run("recovery above leakage is rejected", func(t *testing.T) {
		w := api.do(http.MethodPost, base+"/recovery", map[string]any{"amount": "900"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("recovery requires a positive amount", func(t *testing.T) {
		w := api.do(http.MethodPost, base+"/recovery", map[string]any{"amount": "0"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w := api.do(http.MethodPost, base+"/recovery", map[string]any{"amount": "500", "note": "credit note CN-118"}, middleware.ActorHeader, "finance@corp")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	recovered := decodeData[appleakage.CaseResponse](t, w)
	assert.Equal(t, "recovered", recovered.Status)
	assert.True(t, recovered.RecoveredAmount.Equal(decimal.NewFromInt(500)))
	last := recovered.Activities[len(recovered.Activities)-1]
	assert.Equal(t, "finance@corp", last.User)

	w = transition("closed")
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("closed cases reject comments", func(t *testing.T) {
		w := api.do(http.MethodPost, base+"/comments", map[string]any{"text": "late"})
		assert.GreaterOrEqual(t, w.Code, 400)
	})

	t.Run("invalid edge from closed", func(t *testing.T) {
		w := transition("new")
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestCaseHandler_Collaboration(t *testing.T) {
	api := newTestAPI(t)
	opened := api.submitFlagged(t, "C-2")
	base := "/api/v1/cases/" + opened.ID.String()

	t.Run("assign and clear", func(t *testing.T) {
		w := api.do(http.MethodPut, base+"/assignee", map[string]any{"assignee": "analyst@corp"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := decodeData[appleakage.CaseResponse](t, w)
		require.NotNil(t, got.Assignee)
		assert.Equal(t, "analyst@corp", *got.Assignee)

		w = api.do(http.MethodGet, "/api/v1/cases?assignee=analyst@corp", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decodeData[[]appleakage.CaseResponse](t, w), 1)

		w = api.do(http.MethodPut, base+"/assignee", map[string]any{"assignee": ""})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, decodeData[appleakage.CaseResponse](t, w).Assignee)
	})

	t.Run("evidence", func(t *testing.T) {
		w := api.do(http.MethodPost, base+"/evidence", map[string]any{
			"name": "trip-sheet.pdf", "type": "document", "uri": "s3://evidence/trip-sheet.pdf",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		got := decodeData[appleakage.CaseResponse](t, w)
		require.Len(t, got.Evidence, 1)
		assert.Equal(t, "trip-sheet.pdf", got.Evidence[0].Name)

		w = api.do(http.MethodPost, base+"/evidence", map[string]any{"type": "document"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("comment", func(t *testing.T) {
		w := api.do(http.MethodPost, base+"/comments", map[string]any{"text": "vendor contacted"}, middleware.ActorHeader, "analyst@corp")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		got := decodeData[appleakage.CaseResponse](t, w)
		last := got.Activities[len(got.Activities)-1]
		assert.Equal(t, leakage.ActivityComment, last.Type)
		assert.Equal(t, "analyst@corp", last.User)
	})

	t.Run("get by number", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/cases/number/"+opened.CaseNumber, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, opened.ID, decodeData[appleakage.CaseResponse](t, w).ID)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/cases/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown status filter", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/cases?status=archived", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("xlsx export", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/cases/export?format=xlsx&open_only=true", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, export.FormatXLSX.ContentType(), w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
	})
}

func TestAnalyticsHandler(t *testing.T) {
	api := newTestAPI(t)
	api.submitFlagged(t, "A-1")
	api.submitFlagged(t, "A-2")

	t.Run("dashboard", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/analytics/dashboard", nil)
		require.Equal(t, http.StatusOK, w.Code)
		sum := decodeData[appleakage.DashboardSummary](t, w)
		assert.Equal(t, 2, sum.TotalCases)
		assert.True(t, sum.TotalLeakage.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("vendors", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/analytics/vendors?limit=5", nil)
		require.Equal(t, http.StatusOK, w.Code)
		vendors := decodeData[[]appleakage.VendorSummary](t, w)
		require.Len(t, vendors, 1)
		assert.Equal(t, "FastFreight", vendors[0].Vendor)
		assert.Equal(t, 2, vendors[0].CaseCount)
	})

	t.Run("vendor limit bounds", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/analytics/vendors?limit=0", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		w = api.do(http.MethodGet, "/api/v1/analytics/vendors?limit=1000", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rules", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/v1/rules", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, decodeData[[]appleakage.ValidationRule](t, w))
	})
}

func TestLedgerHandler_Import(t *testing.T) {
	api := newTestAPI(t)

	upload := func(filename, content string, dryRun bool) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if filename != "" {
			fw, err := mw.CreateFormFile("file", filename)
			require.NoError(t, err)
			_, _ = fw.Write([]byte(content))
		}
		if dryRun {
			_ = mw.WriteField("dry_run", "true")
		}
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/ledger/payments/import", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		api.engine.ServeHTTP(w, req)
		return w
	}

	t.Run("csv dry run", func(t *testing.T) {
		w := upload("ledger.csv", "payment_ref,vendor_code\nP-1,V-1\n", true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, export.FormatCSV, api.importer.format)
		assert.True(t, api.importer.dryRun)
		assert.Contains(t, api.importer.body, "P-1")
		assert.True(t, decodeData[csvimport.ImportResult](t, w).DryRun)
	})

	t.Run("missing file", func(t *testing.T) {
		w := upload("", "", false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "file", decodeResponse(t, w).Error.Details[0].Field)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		w := upload("ledger.pdf", "x", false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
