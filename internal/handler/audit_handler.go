package handler

import (
	"net/http"

	"posfinance/internal/middleware"
	"posfinance/internal/model"
	"posfinance/internal/service"
	"posfinance/pkg/pagination"
	"posfinance/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api")
	{
		api.GET("/audit-logs", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.List)
	}
}

// List lists audit log entries
// @Summary      List audit logs
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page     query  int     false  "Page number (default 1)"
// @Param        limit    query  int     false  "Number of items per page (default 20)"
// @Param        action   query  string  false  "Filter by action"
// @Param        user_id  query  string  false  "Filter by user"
// @Success      200  {object}  response.Response{data=response.Page}
// @Failure      500  {object}  response.Response
// @Router       /api/audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	params := pagination.Parse(c)
	logs, total, err := h.auditService.List(c.Request.Context(), middleware.CompanyID(c), c.Query("action"), c.Query("user_id"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to retrieve audit logs: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, total, params.Page, params.Limit))
}
