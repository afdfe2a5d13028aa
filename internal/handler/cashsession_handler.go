package handler

import (
	"errors"
	"net/http"

	"posfinance/internal/middleware"
	"posfinance/internal/model"
	"posfinance/internal/service"
	"posfinance/pkg/pagination"
	"posfinance/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CashSessionHandler struct {
	sessionService service.CashSessionService
}

func NewCashSessionHandler(sessionService service.CashSessionService) *CashSessionHandler {
	return &CashSessionHandler{sessionService: sessionService}
}

func (h *CashSessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api")
	{
		api.POST("/sessions", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.Open)
		api.GET("/sessions", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.List)
		api.GET("/sessions/:id", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.Get)
		api.GET("/sessions/:id/transactions", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.ListTransactions)
		api.POST("/sessions/:id/transactions", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.RecordTransaction)
		api.POST("/sessions/:id/close", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.Close)
		api.POST("/sessions/:id/verify", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.VerifyClose)
		api.GET("/discrepancies", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.ListDiscrepancies)
		api.POST("/discrepancies/:id/acknowledge", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.AcknowledgeDiscrepancy)
		api.POST("/discrepancies/:id/resolve", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.ResolveDiscrepancy)
	}
}

func statusForSessionError(err error) int {
	var state *service.SessionStateError
	if errors.As(err, &state) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

// Open opens a cash session
// @Summary      Open session
// @Description  Opens a drawer session with an opening float within the company's configured bounds
// @Tags         cash
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.OpenSessionRequest  true  "Open Session Payload"
// @Success      201      {object}  response.Response{data=model.CashSession}
// @Failure      400      {object}  response.Response
// @Router       /api/sessions [post]
func (h *CashSessionHandler) Open(c *gin.Context) {
	var req service.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	cashierID, err := uuid.Parse(middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid user identity"))
		return
	}

	session, err := h.sessionService.Open(c.Request.Context(), middleware.CompanyID(c), cashierID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, session))
}

// Get retrieves one session
// @Summary      Get session
// @Tags         cash
// @Security     BearerAuth
// @Produce      json
// @Param        id  path      string  true  "Session ID"
// @Success      200  {object}  response.Response{data=model.CashSession}
// @Failure      404  {object}  response.Response
// @Router       /api/sessions/{id} [get]
func (h *CashSessionHandler) Get(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid session ID"))
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), middleware.CompanyID(c), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Session not found"))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, session))
}

// List lists sessions
// @Summary      List sessions
// @Tags         cash
// @Security     BearerAuth
// @Produce      json
// @Param        page    query  int     false  "Page number (default 1)"
// @Param        limit   query  int     false  "Number of items per page (default 20)"
// @Param        status  query  string  false  "Filter by status"
// @Success      200  {object}  response.Response{data=response.Page}
// @Router       /api/sessions [get]
func (h *CashSessionHandler) List(c *gin.Context) {
	params := pagination.Parse(c)
	sessions, total, err := h.sessionService.List(c.Request.Context(), middleware.CompanyID(c), c.Query("status"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, sessions, total, params.Page, params.Limit))
}

// ListTransactions lists a session's drawer movements
// @Summary      List session transactions
// @Description  Returns the append-only drawer movement ledger ordered by creation time
// @Tags         cash
// @Security     BearerAuth
// @Produce      json
// @Param        id  path      string  true  "Session ID"
// @Success      200  {object}  response.Response{data=[]model.CashTransaction}
// @Router       /api/sessions/{id}/transactions [get]
func (h *CashSessionHandler) ListTransactions(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid session ID"))
		return
	}

	transactions, err := h.sessionService.ListTransactions(c.Request.Context(), middleware.CompanyID(c), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, transactions))
}

// RecordTransaction records a drawer movement
// @Summary      Record cash transaction
// @Description  Records a refund, payout, or pay-in on an open session; the drawer balance cannot go negative
// @Tags         cash
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Session ID"
// @Param        payload  body      service.CashTransactionRequest  true  "Transaction Payload"
// @Success      201      {object}  response.Response{data=model.CashTransaction}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response  "Session is not open"
// @Router       /api/sessions/{id}/transactions [post]
func (h *CashSessionHandler) RecordTransaction(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid session ID"))
		return
	}

	var req service.CashTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tx, err := h.sessionService.RecordTransaction(c.Request.Context(), middleware.CompanyID(c), sessionID, middleware.UserID(c), req)
	if err != nil {
		status := statusForSessionError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tx))
}

// Close closes a session against a counted balance
// @Summary      Close session
// @Description  Compares the counted drawer against the expected cash; differences beyond tolerance create a discrepancy
// @Tags         cash
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Session ID"
// @Param        payload  body      service.CloseSessionRequest  true  "Close Payload"
// @Success      200      {object}  response.Response{data=service.SessionCloseResult}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response  "Session is not open"
// @Router       /api/sessions/{id}/close [post]
func (h *CashSessionHandler) Close(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid session ID"))
		return
	}

	var req service.CloseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.sessionService.Close(c.Request.Context(), middleware.CompanyID(c), sessionID, middleware.UserID(c), req)
	if err != nil {
		status := statusForSessionError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// VerifyClose approves or rejects a pending close
// @Summary      Verify session close
// @Description  Approves a closure to CLOSED or rejects it, reopening the session
// @Tags         cash
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Session ID"
// @Param        payload  body      service.VerifyCloseRequest  true  "Verify Payload"
// @Success      200      {object}  response.Response{data=model.CashSession}
// @Failure      409      {object}  response.Response  "Session is not awaiting verification"
// @Router       /api/sessions/{id}/verify [post]
func (h *CashSessionHandler) VerifyClose(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid session ID"))
		return
	}

	var req service.VerifyCloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	session, err := h.sessionService.VerifyClose(c.Request.Context(), middleware.CompanyID(c), sessionID, middleware.UserID(c), req)
	if err != nil {
		status := statusForSessionError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, session))
}

// ListDiscrepancies lists cash discrepancies
// @Summary      List discrepancies
// @Tags         cash
// @Security     BearerAuth
// @Produce      json
// @Param        page    query  int     false  "Page number (default 1)"
// @Param        limit   query  int     false  "Number of items per page (default 20)"
// @Param        status  query  string  false  "Filter by status"
// @Success      200  {object}  response.Response{data=response.Page}
// @Router       /api/discrepancies [get]
func (h *CashSessionHandler) ListDiscrepancies(c *gin.Context) {
	params := pagination.Parse(c)
	discrepancies, total, err := h.sessionService.ListDiscrepancies(c.Request.Context(), middleware.CompanyID(c), c.Query("status"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, discrepancies, total, params.Page, params.Limit))
}

// AcknowledgeDiscrepancy acknowledges a pending discrepancy
// @Summary      Acknowledge discrepancy
// @Tags         cash
// @Security     BearerAuth
// @Produce      json
// @Param        id  path      string  true  "Discrepancy ID"
// @Success      200  {object}  response.Response{data=model.CashDiscrepancy}
// @Failure      400  {object}  response.Response
// @Router       /api/discrepancies/{id}/acknowledge [post]
func (h *CashSessionHandler) AcknowledgeDiscrepancy(c *gin.Context) {
	discrepancyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid discrepancy ID"))
		return
	}

	discrepancy, err := h.sessionService.AcknowledgeDiscrepancy(c.Request.Context(), middleware.CompanyID(c), discrepancyID, middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, discrepancy))
}

// ResolveDiscrepancy resolves a discrepancy
// @Summary      Resolve discrepancy
// @Description  Resolves a discrepancy with an attributed resolution; payroll deductions require a deduction amount
// @Tags         cash
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                             true  "Discrepancy ID"
// @Param        payload  body      service.ResolveDiscrepancyRequest  true  "Resolution Payload"
// @Success      200      {object}  response.Response{data=model.CashDiscrepancy}
// @Failure      400      {object}  response.Response
// @Router       /api/discrepancies/{id}/resolve [post]
func (h *CashSessionHandler) ResolveDiscrepancy(c *gin.Context) {
	discrepancyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid discrepancy ID"))
		return
	}

	var req service.ResolveDiscrepancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	discrepancy, err := h.sessionService.ResolveDiscrepancy(c.Request.Context(), middleware.CompanyID(c), discrepancyID, middleware.UserID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, discrepancy))
}
