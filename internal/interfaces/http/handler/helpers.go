package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spendaudit/backend/internal/domain/shared"
	"github.com/spendaudit/backend/internal/infrastructure/export"
	"github.com/spendaudit/backend/internal/interfaces/http/dto"
)

const dateLayout = "2006-01-02"

// parseDateParam parses an optional YYYY-MM-DD or RFC 3339 value. With
// endOfDay a bare date covers the whole day.
func parseDateParam(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// toFilter converts normalized list parameters to a repository filter
func toFilter(req dto.ListRequest) shared.Filter {
	req.Normalize()
	return shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
	}
}

// writeExport streams t as an attachment in the requested format
func (h *BaseHandler) writeExport(c *gin.Context, formatParam, base string, t export.Table) {
	format, err := export.ParseFormat(formatParam)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename(base)))
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, format, t); err != nil {
		_ = c.Error(err)
	}
}
