package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/erprbac/internal/services"
	"github.com/charlesng35/erprbac/pkg/response"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

type AuditHandler struct {
	svc *services.AuditService
}

func NewAuditHandler(svc *services.AuditService) (*AuditHandler, error) {
	if svc == nil {
		return nil, errors.New("audit handler: audit service is required")
	}
	return &AuditHandler{svc: svc}, nil
}

// GET /api/rbac/audit
func (h *AuditHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	if page <= 0 {
		page = 1
	}
	per := parseIntQuery(c, "per_page", defaultAuditPageSize)
	if per <= 0 || per > maxAuditPageSize {
		per = defaultAuditPageSize
	}

	filters := services.AuditFilters{
		ActorID: c.Query("actor_id"),
		Action:  c.Query("action"),
		RoleID:  c.Query("role_id"),
		Result:  c.Query("result"),
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			filters.Since = &t
		}
	}
	if u := c.Query("until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			filters.Until = &t
		}
	}

	logs, total, err := h.svc.List(requestContext(c), services.AuditListOptions{Page: page, PageSize: per, Filters: filters})
	if err != nil {
		response.Error(c, err)
		return
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(per) - 1) / int64(per))
	}
	response.SuccessWithMeta(c, http.StatusOK, logs, &response.Meta{
		Page:       page,
		PerPage:    per,
		Total:      int(total),
		TotalPages: totalPages,
	})
}
