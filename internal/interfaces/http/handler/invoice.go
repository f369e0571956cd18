package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	appleakage "github.com/spendaudit/backend/internal/application/leakage"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/interfaces/http/dto"
)

// DefaultMaxBatchSize bounds a batch or audit scan when none is configured
const DefaultMaxBatchSize = 500

// InvoiceHandler evaluates submitted invoices
type InvoiceHandler struct {
	BaseHandler
	leakageService *appleakage.LeakageService
	maxBatchSize   int
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(leakageService *appleakage.LeakageService, maxBatchSize int) *InvoiceHandler {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &InvoiceHandler{
		leakageService: leakageService,
		maxBatchSize:   maxBatchSize,
	}
}

// Submit godoc
// @ID           submitInvoice
// @Summary      Evaluate an invoice
// @Description  Runs the domain evaluator, stores the result and opens a case when warranted
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        X-Actor  header  string          false  "Acting user"
// @Param        request  body    InvoiceRequest  true   "Invoice"
// @Success      201  {object}  APIResponse[appleakage.SubmissionResult]
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /invoices [post]
func (h *InvoiceHandler) Submit(c *gin.Context) {
	var req InvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := req.ToDomain()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.leakageService.SubmitInvoice(c.Request.Context(), inv)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// SubmitBatch godoc
// @ID           submitInvoiceBatch
// @Summary      Evaluate a batch of invoices
// @Description  Invoices are evaluated concurrently; a failure is reported in its own item
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request  body  BatchRequest  true  "Invoices"
// @Success      200  {object}  APIResponse[[]appleakage.BatchItem]
// @Failure      400  {object}  ErrorResponse
// @Router       /invoices/batch [post]
func (h *InvoiceHandler) SubmitBatch(c *gin.Context) {
	invoices, ok := h.bindBatch(c)
	if !ok {
		return
	}
	h.Success(c, h.leakageService.SubmitBatch(c.Request.Context(), invoices))
}

// AuditScan godoc
// @ID           runAuditScan
// @Summary      Run an audit scan
// @Description  Evaluates a batch and returns a summary under a sortable scan ID
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request  body  BatchRequest  true  "Invoices"
// @Success      200  {object}  APIResponse[appleakage.AuditScan]
// @Failure      400  {object}  ErrorResponse
// @Router       /audit-scans [post]
func (h *InvoiceHandler) AuditScan(c *gin.Context) {
	invoices, ok := h.bindBatch(c)
	if !ok {
		return
	}
	h.Success(c, h.leakageService.RunAuditScan(c.Request.Context(), invoices))
}

func (h *InvoiceHandler) bindBatch(c *gin.Context) ([]*leakage.Invoice, bool) {
	var req BatchRequest
	if !h.bindJSON(c, &req) {
		return nil, false
	}
	if len(req.Invoices) > h.maxBatchSize {
		h.ValidationError(c, []dto.ValidationDetail{{
			Field:   "invoices",
			Message: fmt.Sprintf("Must contain at most %d invoices", h.maxBatchSize),
		}})
		return nil, false
	}
	invoices, details := req.ToDomain()
	if len(details) > 0 {
		h.ValidationError(c, details)
		return nil, false
	}
	return invoices, true
}
