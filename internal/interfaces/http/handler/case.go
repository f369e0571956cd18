package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	appleakage "github.com/spendaudit/backend/internal/application/leakage"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/infrastructure/export"
	"github.com/spendaudit/backend/internal/interfaces/http/dto"
)

// CaseHandler drives leakage cases through their lifecycle
type CaseHandler struct {
	BaseHandler
	caseService *appleakage.CaseService
}

// NewCaseHandler creates a new CaseHandler
func NewCaseHandler(caseService *appleakage.CaseService) *CaseHandler {
	return &CaseHandler{caseService: caseService}
}

// CaseListQuery filters case listings and exports
type CaseListQuery struct {
	dto.ListRequest
	Status    string `form:"status" binding:"omitempty,case_status"`
	Severity  string `form:"severity" binding:"omitempty,oneof=critical high medium low"`
	Category  string `form:"category"`
	Domain    string `form:"domain" binding:"omitempty,leakage_domain"`
	Vendor    string `form:"vendor"`
	Assignee  string `form:"assignee"`
	SLAStatus string `form:"sla_status" binding:"omitempty,oneof=on_track at_risk breached"`
	OpenOnly  bool   `form:"open_only"`
	Format    string `form:"format" binding:"omitempty,oneof=csv xlsx"`
}

// TransitionRequest moves a case to a new status
type TransitionRequest struct {
	To   string `json:"to" binding:"required,case_status" example:"triaged"`
	Note string `json:"note" binding:"max=2000" example:"Confirmed against trip sheet"`
}

// AssignRequest sets the assignee; an empty assignee clears it
type AssignRequest struct {
	Assignee string `json:"assignee" binding:"max=200" example:"analyst@corp"`
}

// EvidenceRequest attaches an evidence record
type EvidenceRequest struct {
	Name        string `json:"name" binding:"required,max=255" example:"trip-sheet-0113.pdf"`
	Type        string `json:"type" binding:"max=50" example:"document"`
	URI         string `json:"uri" binding:"omitempty,uri,max=2000" example:"s3://evidence/trip-sheet-0113.pdf"`
	Description string `json:"description" binding:"max=2000"`
}

// CommentRequest adds a comment
type CommentRequest struct {
	Text string `json:"text" binding:"required,max=5000" example:"Vendor acknowledged the overbilling"`
}

// NoteRequest carries an optional note
type NoteRequest struct {
	Note string `json:"note" binding:"max=2000"`
}

// RecoveryRequest records a recovered amount
type RecoveryRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required,gt=0" example:"500.00"`
	Note   string          `json:"note" binding:"max=2000" example:"Credit note CN-118"`
}

func (h *CaseHandler) filter(c *gin.Context) (leakage.CaseFilter, bool) {
	var q CaseListQuery
	if !h.bindQuery(c, &q) {
		return leakage.CaseFilter{}, false
	}
	return leakage.CaseFilter{
		Filter:    toFilter(q.ListRequest),
		Status:    leakage.CaseStatus(q.Status),
		Severity:  leakage.Severity(q.Severity),
		Category:  leakage.Category(q.Category),
		Domain:    leakage.Domain(q.Domain),
		Vendor:    q.Vendor,
		Assignee:  q.Assignee,
		SLAStatus: leakage.SLAStatus(q.SLAStatus),
		OpenOnly:  q.OpenOnly,
	}, true
}

// List godoc
// @ID           listCases
// @Summary      List leakage cases
// @Tags         cases
// @Produce      json
// @Param        status      query  string  false  "Lifecycle status"
// @Param        severity    query  string  false  "Severity"
// @Param        domain      query  string  false  "Domain"
// @Param        vendor      query  string  false  "Vendor"
// @Param        assignee    query  string  false  "Assignee"
// @Param        sla_status  query  string  false  "SLA status"
// @Param        open_only   query  bool    false  "Only non-terminal cases"
// @Param        page        query  int     false  "Page number"  default(1)
// @Param        page_size   query  int     false  "Page size"    default(20)
// @Success      200  {object}  APIResponse[[]appleakage.CaseResponse]
// @Failure      400  {object}  ErrorResponse
// @Router       /cases [get]
func (h *CaseHandler) List(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	page, err := h.caseService.ListCases(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetByID godoc
// @ID           getCase
// @Summary      Get a case
// @Tags         cases
// @Produce      json
// @Param        id  path  string  true  "Case ID"  format(uuid)
// @Success      200  {object}  APIResponse[appleakage.CaseResponse]
// @Failure      404  {object}  ErrorResponse
// @Router       /cases/{id} [get]
func (h *CaseHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "case")
	if !ok {
		return
	}
	resp, err := h.caseService.GetCase(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetByNumber godoc
// @ID           getCaseByNumber
// @Summary      Get a case by case number
// @Tags         cases
// @Produce      json
// @Param        number  path  string  true  "Case number"
// @Success      200  {object}  APIResponse[appleakage.CaseResponse]
// @Failure      404  {object}  ErrorResponse
// @Router       /cases/number/{number} [get]
func (h *CaseHandler) GetByNumber(c *gin.Context) {
	resp, err := h.caseService.GetCaseByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Transition godoc
// @ID           transitionCase
// @Summary      Move a case to a new status
// @Description  Only lifecycle edges are allowed; recovered is reached through the recovery endpoint
// @Tags         cases
// @Accept       json
// @Produce      json
// @Param        X-Actor  header  string             false  "Acting user"
// @Param        id       path    string             true   "Case ID"  format(uuid)
// @Param        request  body    TransitionRequest  true   "Target status"
// @Success      200  {object}  APIResponse[appleakage.CaseResponse]
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /cases/{id}/transitions [post]
func (h *CaseHandler) Transition(c *gin.Context) {
	id, ok := h.pathID(c, "case")
	if !ok {
		return
	}
	var req TransitionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.caseService.Transition(c.Request.Context(), appleakage.TransitionCommand{
		CaseID: id,
		To:     leakage.CaseStatus(req.To),
		Actor:  getActor(c),
		Note:   req.Note,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Assign godoc
// @ID           assignCase
// @Summary      Assign a case
// @Tags         cases
// @Accept       json
// @Produce      json
// @Param        id       path  string         true  "Case ID"  format(uuid)
// @Param        request  body  AssignRequest  true  "Assignee"
// @Success      200  {object}  APIResponse[appleakage.CaseResponse]
// @Failure      404  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /cases/{id}/assignee [put]
func (h *CaseHandler) Assign(c *gin.Context) {
	id, ok := h.pathID(c, "case")
	if !ok {
		return
	}
	var req AssignRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.caseService.Assign(c.Request.Context(), id, req.Assignee, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// AddEvidence godoc
// @ID           addCaseEvidence
// @Summary      Attach evidence to a case
// @Tags         cases
// @Accept       json
// @Produce      json
// @Param        id       path  string           true  "Case ID"  format(uuid)
// @Param        request  body  EvidenceRequest  true  "Evidence"
// @Success      201  {object}  APIResponse[appleakage.CaseResponse]
// @Failure      400  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /cases/{id}/evidence [post]
func (h *CaseHandler) AddEvidence(c *gin.Context) {
	id, ok := h.pathID(c, "case")
	if !ok {
		return
	}
	var req EvidenceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.caseService.AttachEvidence(c.Request.Context(), id, leakage.Evidence{
		Name:        req.Name,
		Type:        req.Type,
		URI:         req.URI,
		Description: req.Description,
	}, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// AddComment godoc
// @ID           addCaseComment
// @Summary      Comment on a case
// @Tags         cases
// @Accept       json
// @Produce      json
// @Param        id       path  string          true  "Case ID"  format(uuid)
// @Param        request  body  CommentRequest  true  "Comment"
// @Success      201  {object}  APIResponse[appleakage.CaseResponse]
// @Failure      400  {object}  ErrorResponse
// @Router       /cases/{id}/comments [post]
func (h *CaseHandler) AddComment(c *gin.Context) {
	id, ok := h.pathID(c, "case")
	if !ok {
		return
	}
	var req CommentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.caseService.AddComment(c.Request.Context(), id, getActor(c), req.Text)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ResolveVerification godoc
// @ID           resolveCaseVerification
// @Summary      Clear a pending verification
// @Tags         cases
// @Accept       json
// @Produce      json
// @Param        id       path  string       true   "Case ID"  format(uuid)
// @Param        request  body  NoteRequest  false  "Note"
// @Success      200  {object}  APIResponse[appleakage.CaseResponse]
// @Failure      422  {object}  ErrorResponse
// @Router       /cases/{id}/verification [post]
func (h *CaseHandler) ResolveVerification(c *gin.Context) {
	id, ok := h.pathID(c, "case")
	if !ok {
		return
	}
	var req NoteRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.caseService.ResolveVerification(c.Request.Context(), id, getActor(c), req.Note)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// MarkRecovered godoc
// @ID           recoverCase
// @Summary      Record a recovery
// @Description  Moves a recovery_initiated case to recovered
// @Tags         cases
// @Accept       json
// @Produce      json
// @Param        id       path  string           true  "Case ID"  format(uuid)
// @Param        request  body  RecoveryRequest  true  "Recovered amount"
// @Success      200  {object}  APIResponse[appleakage.CaseResponse]
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /cases/{id}/recovery [post]
func (h *CaseHandler) MarkRecovered(c *gin.Context) {
	id, ok := h.pathID(c, "case")
	if !ok {
		return
	}
	var req RecoveryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.caseService.MarkRecovered(c.Request.Context(), id, req.Amount, getActor(c), req.Note)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Export godoc
// @ID           exportCases
// @Summary      Export cases
// @Tags         cases
// @Produce      text/csv
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        format  query  string  false  "csv or xlsx"  default(csv)
// @Success      200  {file}  file
// @Failure      400  {object}  ErrorResponse
// @Router       /cases/export [get]
func (h *CaseHandler) Export(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	cases, err := h.caseService.ListAllCases(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.writeExport(c, c.Query("format"), "cases", export.CasesTable(cases))
}
