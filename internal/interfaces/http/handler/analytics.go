package handler

import (
	"github.com/gin-gonic/gin"
	appleakage "github.com/spendaudit/backend/internal/application/leakage"
)

// AnalyticsHandler serves portfolio and vendor reporting
type AnalyticsHandler struct {
	BaseHandler
	analytics *appleakage.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(analytics *appleakage.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// VendorQuery limits the vendor ranking
type VendorQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// Dashboard godoc
// @ID           getDashboard
// @Summary      Leakage dashboard
// @Description  Case counts, leakage and recovery totals, and the monthly trend
// @Tags         analytics
// @Produce      json
// @Success      200  {object}  APIResponse[appleakage.DashboardSummary]
// @Failure      500  {object}  ErrorResponse
// @Router       /analytics/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	summary, err := h.analytics.Dashboard(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Vendors godoc
// @ID           getVendorAnalytics
// @Summary      Vendors ranked by leakage
// @Tags         analytics
// @Produce      json
// @Param        limit  query  int  false  "Maximum vendors"  default(20)
// @Success      200  {object}  APIResponse[[]appleakage.VendorSummary]
// @Failure      400  {object}  ErrorResponse
// @Router       /analytics/vendors [get]
func (h *AnalyticsHandler) Vendors(c *gin.Context) {
	var q VendorQuery
	if !h.bindQuery(c, &q) {
		return
	}
	vendors, err := h.analytics.VendorAnalytics(c.Request.Context(), q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, vendors)
}

// Rules godoc
// @ID           listValidationRules
// @Summary      Validation rule catalog
// @Description  The checks each domain evaluator performs and the active thresholds
// @Tags         analytics
// @Produce      json
// @Success      200  {object}  APIResponse[[]appleakage.ValidationRule]
// @Router       /rules [get]
func (h *AnalyticsHandler) Rules(c *gin.Context) {
	h.Success(c, h.analytics.ValidationRules())
}
