package handler

import (
	"github.com/gin-gonic/gin"
	appleakage "github.com/spendaudit/backend/internal/application/leakage"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/infrastructure/export"
	"github.com/spendaudit/backend/internal/interfaces/http/dto"
)

// DiscrepancyHandler serves stored evaluation results
type DiscrepancyHandler struct {
	BaseHandler
	leakageService *appleakage.LeakageService
}

// NewDiscrepancyHandler creates a new DiscrepancyHandler
func NewDiscrepancyHandler(leakageService *appleakage.LeakageService) *DiscrepancyHandler {
	return &DiscrepancyHandler{leakageService: leakageService}
}

// DiscrepancyListQuery filters result listings and exports
type DiscrepancyListQuery struct {
	dto.ListRequest
	Domain string `form:"domain" binding:"omitempty,leakage_domain"`
	Vendor string `form:"vendor"`
	Status string `form:"status"`
	From   string `form:"from" example:"2024-01-01"`
	To     string `form:"to" example:"2024-03-31"`
	Format string `form:"format" binding:"omitempty,oneof=csv xlsx"`
}

func (h *DiscrepancyHandler) filter(c *gin.Context) (leakage.ResultFilter, bool) {
	var q DiscrepancyListQuery
	if !h.bindQuery(c, &q) {
		return leakage.ResultFilter{}, false
	}
	from, err := parseDateParam(q.From, false)
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "from", Message: err.Error()}})
		return leakage.ResultFilter{}, false
	}
	to, err := parseDateParam(q.To, true)
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "to", Message: err.Error()}})
		return leakage.ResultFilter{}, false
	}
	if q.OrderBy == "" {
		q.OrderBy = "evaluated_at"
	}
	return leakage.ResultFilter{
		Filter: toFilter(q.ListRequest),
		Domain: leakage.Domain(q.Domain),
		Vendor: q.Vendor,
		Status: leakage.ResultStatus(q.Status),
		From:   from,
		To:     to,
	}, true
}

// List godoc
// @ID           listDiscrepancies
// @Summary      List discrepancy results
// @Tags         discrepancies
// @Produce      json
// @Param        domain     query  string  false  "Domain"
// @Param        vendor     query  string  false  "Vendor"
// @Param        status     query  string  false  "Result status"
// @Param        from       query  string  false  "Evaluated on or after (YYYY-MM-DD)"
// @Param        to         query  string  false  "Evaluated on or before (YYYY-MM-DD)"
// @Param        page       query  int     false  "Page number"  default(1)
// @Param        page_size  query  int     false  "Page size"    default(20)
// @Success      200  {object}  APIResponse[[]leakage.DiscrepancyResult]
// @Failure      400  {object}  ErrorResponse
// @Router       /discrepancies [get]
func (h *DiscrepancyHandler) List(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	page, err := h.leakageService.ListDiscrepancies(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetByID godoc
// @ID           getDiscrepancy
// @Summary      Get a discrepancy result
// @Tags         discrepancies
// @Produce      json
// @Param        id  path  string  true  "Result ID"  format(uuid)
// @Success      200  {object}  APIResponse[leakage.DiscrepancyResult]
// @Failure      404  {object}  ErrorResponse
// @Router       /discrepancies/{id} [get]
func (h *DiscrepancyHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "result")
	if !ok {
		return
	}
	result, err := h.leakageService.GetDiscrepancy(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// OpenCase godoc
// @ID           openCaseForDiscrepancy
// @Summary      Open a case for a result
// @Description  A result backs at most one case
// @Tags         discrepancies
// @Produce      json
// @Param        X-Actor  header  string  false  "Acting user"
// @Param        id       path    string  true   "Result ID"  format(uuid)
// @Success      201  {object}  APIResponse[appleakage.CaseResponse]
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /discrepancies/{id}/case [post]
func (h *DiscrepancyHandler) OpenCase(c *gin.Context) {
	id, ok := h.pathID(c, "result")
	if !ok {
		return
	}
	resp, err := h.leakageService.OpenCase(c.Request.Context(), id, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Export godoc
// @ID           exportDiscrepancies
// @Summary      Export discrepancy results
// @Tags         discrepancies
// @Produce      text/csv
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        format  query  string  false  "csv or xlsx"  default(csv)
// @Success      200  {file}  file
// @Failure      400  {object}  ErrorResponse
// @Router       /discrepancies/export [get]
func (h *DiscrepancyHandler) Export(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	results, err := h.leakageService.ListAllDiscrepancies(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.writeExport(c, c.Query("format"), "discrepancies", export.ResultsTable(results))
}
