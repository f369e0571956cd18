package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spendaudit/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recoveryInput struct {
	Amount   decimal.Decimal `json:"amount" binding:"required,gt=0"`
	Domain   string          `json:"domain" binding:"required,leakage_domain"`
	Status   string          `json:"status" binding:"omitempty,case_status"`
	Currency string          `json:"currency" binding:"omitempty,currency"`
}

func validationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var in recoveryInput
		if err := c.ShouldBindJSON(&in); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(in.Amount.String()))
	})
	return router
}

func postJSON(router http.Handler, body string) (*httptest.ResponseRecorder, dto.Response) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp dto.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHandleValidationError(t *testing.T) {
	router := validationRouter()

	t.Run("field details use json names", func(t *testing.T) {
		w, resp := postJSON(router, `{"amount":"0","domain":"catering","status":"lost","currency":"JPY"}`)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.NotEmpty(t, resp.Error.RequestID)

		fields := make(map[string]string)
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "This field is required", fields["amount"])
		assert.Equal(t, "Must be a supported domain", fields["domain"])
		assert.Equal(t, "Must be a case lifecycle status", fields["status"])
		assert.Equal(t, "Must be a supported currency code", fields["currency"])
	})

	t.Run("negative decimal fails gt", func(t *testing.T) {
		w, resp := postJSON(router, `{"amount":"-5","domain":"saas"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "Must be greater than 0", resp.Error.Details[0].Message)
	})

	t.Run("valid input passes", func(t *testing.T) {
		w, resp := postJSON(router, `{"amount":"125.50","domain":"logistics","status":"triaged","currency":"INR"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "125.5", resp.Data)
	})

	t.Run("malformed json", func(t *testing.T) {
		w, resp := postJSON(router, `{"amount":`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	})

	t.Run("wrong json type", func(t *testing.T) {
		w, resp := postJSON(router, `{"amount":"1","domain":42}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Contains(t, resp.Error.Details[0].Message, "string")
	})
}

func TestGetValidationMessage(t *testing.T) {
	type input struct {
		Required string `validate:"required"`
		Min      string `validate:"min=5"`
		Max      string `validate:"max=3"`
		UUID     string `validate:"uuid"`
		OneOf    string `validate:"oneof=csv xlsx"`
		GTE      int    `validate:"gte=10"`
	}
	v := validator.New()
	err := v.Struct(input{Min: "ab", Max: "toolong", UUID: "nope", OneOf: "pdf", GTE: 1})
	require.Error(t, err)

	got := make(map[string]string)
	for _, e := range err.(validator.ValidationErrors) {
		got[e.Field()] = getValidationMessage(e)
	}
	assert.Equal(t, map[string]string{
		"Required": "This field is required",
		"Min":      "Must be at least 5 characters",
		"Max":      "Must be at most 3 characters",
		"UUID":     "Invalid UUID format",
		"OneOf":    "Must be one of: csv xlsx",
		"GTE":      "Must be greater than or equal to 10",
	}, got)
}
