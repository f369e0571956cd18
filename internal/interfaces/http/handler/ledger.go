package handler

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/spendaudit/backend/internal/infrastructure/export"
	csvimport "github.com/spendaudit/backend/internal/infrastructure/import"
	"github.com/spendaudit/backend/internal/interfaces/http/dto"
)

// PaymentImporter loads payment ledger uploads
type PaymentImporter interface {
	Import(ctx context.Context, r io.Reader, format export.Format, dryRun bool) (*csvimport.ImportResult, error)
}

// LedgerHandler accepts payment ledger uploads used by duplicate-payment checks
type LedgerHandler struct {
	BaseHandler
	importer PaymentImporter
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(importer PaymentImporter) *LedgerHandler {
	return &LedgerHandler{importer: importer}
}

// LedgerUploadForm is the multipart form of a ledger upload
type LedgerUploadForm struct {
	DryRun bool `form:"dry_run"`
}

// Import godoc
// @ID           importPaymentLedger
// @Summary      Import payment ledger entries
// @Description  Accepts a CSV or XLSX file with payment_ref, vendor_code, invoice_number, amount and payment_date columns
// @Tags         ledger
// @Accept       multipart/form-data
// @Produce      json
// @Param        file     formData  file  true   "Ledger file (.csv or .xlsx)"
// @Param        dry_run  formData  bool  false  "Validate without recording"
// @Success      200  {object}  APIResponse[csvimport.ImportResult]
// @Failure      400  {object}  ErrorResponse
// @Router       /ledger/payments/import [post]
func (h *LedgerHandler) Import(c *gin.Context) {
	var form LedgerUploadForm
	if err := c.ShouldBind(&form); err != nil {
		h.BadRequest(c, "Invalid form data")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "file", Message: "file is required"}})
		return
	}
	format, err := csvimport.FormatFromFilename(fh.Filename)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.BadRequest(c, "Cannot read uploaded file")
		return
	}
	defer f.Close()

	result, err := h.importer.Import(c.Request.Context(), f, format, form.DryRun)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
