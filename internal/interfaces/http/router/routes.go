package router

import (
	"github.com/gin-gonic/gin"
	"github.com/spendaudit/backend/internal/interfaces/http/handler"
)

// Handlers are the handlers mounted by Routes. A nil SLA or Ledger handler
// leaves its routes out.
type Handlers struct {
	Invoices      *handler.InvoiceHandler
	Discrepancies *handler.DiscrepancyHandler
	Cases         *handler.CaseHandler
	Analytics     *handler.AnalyticsHandler
	Ledger        *handler.LedgerHandler
	SLA           *handler.SLAHandler
	System        *handler.SystemHandler
}

// Routes registers every leakage API route on r. batchLimit, when set, guards
// the batch endpoints.
func Routes(r *Router, h Handlers, batchLimit gin.HandlerFunc) {
	var batchGuard []gin.HandlerFunc
	if batchLimit != nil {
		batchGuard = append(batchGuard, batchLimit)
	}

	health := NewDomainGroup("health", "")
	health.GET("/health", h.System.Health)
	r.RegisterRoot(health)

	system := NewDomainGroup("system", "/system")
	system.GET("/health", h.System.Health)
	system.GET("/info", h.System.GetSystemInfo)
	system.GET("/ping", h.System.Ping)
	r.Register(system)

	invoices := NewDomainGroup("invoices", "/invoices")
	invoices.POST("", h.Invoices.Submit)
	invoices.POST("/batch", append(batchGuard, h.Invoices.SubmitBatch)...)
	r.Register(invoices)

	scans := NewDomainGroup("audit-scans", "/audit-scans")
	scans.POST("", append(batchGuard, h.Invoices.AuditScan)...)
	r.Register(scans)

	discrepancies := NewDomainGroup("discrepancies", "/discrepancies")
	discrepancies.GET("", h.Discrepancies.List)
	discrepancies.GET("/export", h.Discrepancies.Export)
	discrepancies.GET("/:id", h.Discrepancies.GetByID)
	discrepancies.POST("/:id/case", h.Discrepancies.OpenCase)
	r.Register(discrepancies)

	cases := NewDomainGroup("cases", "/cases")
	cases.GET("", h.Cases.List)
	cases.GET("/export", h.Cases.Export)
	cases.GET("/number/:number", h.Cases.GetByNumber)
	cases.GET("/:id", h.Cases.GetByID)
	cases.POST("/:id/transitions", h.Cases.Transition)
	cases.PUT("/:id/assignee", h.Cases.Assign)
	cases.POST("/:id/evidence", h.Cases.AddEvidence)
	cases.POST("/:id/comments", h.Cases.AddComment)
	cases.POST("/:id/verification", h.Cases.ResolveVerification)
	cases.POST("/:id/recovery", h.Cases.MarkRecovered)
	r.Register(cases)

	analytics := NewDomainGroup("analytics", "/analytics")
	analytics.GET("/dashboard", h.Analytics.Dashboard)
	analytics.GET("/vendors", h.Analytics.Vendors)
	r.Register(analytics)

	rules := NewDomainGroup("rules", "/rules")
	rules.GET("", h.Analytics.Rules)
	r.Register(rules)

	if h.Ledger != nil {
		ledger := NewDomainGroup("ledger", "/ledger")
		ledger.POST("/payments/import", h.Ledger.Import)
		r.Register(ledger)
	}

	if h.SLA != nil {
		sla := NewDomainGroup("sla", "/sla")
		sla.POST("/sweeps", h.SLA.TriggerSweep)
		sla.GET("/status", h.SLA.Status)
		r.Register(sla)
	}
}
