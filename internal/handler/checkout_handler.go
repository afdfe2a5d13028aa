package handler

import (
	"errors"
	"net/http"

	"posfinance/internal/costing"
	"posfinance/internal/ledger"
	"posfinance/internal/middleware"
	"posfinance/internal/model"
	"posfinance/internal/repository"
	"posfinance/internal/service"
	"posfinance/pkg/pagination"
	"posfinance/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
	ledgerService   service.LedgerService
}

func NewCheckoutHandler(checkoutService service.CheckoutService, ledgerService service.LedgerService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService, ledgerService: ledgerService}
}

func (h *CheckoutHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api")
	{
		api.POST("/checkout", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.Checkout)
		api.GET("/invoices", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.ListInvoices)
		api.GET("/invoices/:id", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.GetInvoice)
		api.GET("/accounts", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.ListAccounts)
		api.POST("/accounts", middleware.RequireRole(model.RoleAdmin), h.CreateAccount)
	}
}

// Checkout posts a sale
// @Summary      Checkout
// @Description  Posts a sale atomically: consumes stock, taxes each line, builds and validates the balanced ledger distribution, persists the invoice, and moves the cash drawer
// @Tags         checkout
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CheckoutRequest  true  "Checkout Payload"
// @Success      201      {object}  response.Response{data=model.Invoice}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response  "Insufficient stock or session not open"
// @Failure      422      {object}  response.Response  "Ledger imbalance or missing configuration"
// @Router       /api/checkout [post]
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.checkoutService.Checkout(c.Request.Context(), middleware.CompanyID(c), middleware.UserID(c), req)
	if err != nil {
		status := statusForCheckoutError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

func statusForCheckoutError(err error) int {
	var insufficient *costing.InsufficientStockError
	var sessionState *service.SessionStateError
	var imbalance *ledger.ImbalanceError
	switch {
	case errors.As(err, &insufficient), errors.As(err, &sessionState):
		return http.StatusConflict
	case errors.As(err, &imbalance), errors.Is(err, repository.ErrAccountNotConfigured):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// GetInvoice retrieves one invoice
// @Summary      Get invoice
// @Description  Retrieves an invoice with its lines, tax lines, payments, and ledger postings
// @Tags         checkout
// @Security     BearerAuth
// @Produce      json
// @Param        id  path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=model.Invoice}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *CheckoutHandler) GetInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid invoice ID"))
		return
	}

	invoice, err := h.checkoutService.GetInvoice(c.Request.Context(), middleware.CompanyID(c), invoiceID)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// ListInvoices lists invoices
// @Summary      List invoices
// @Tags         checkout
// @Security     BearerAuth
// @Produce      json
// @Param        page        query  int     false  "Page number (default 1)"
// @Param        limit       query  int     false  "Number of items per page (default 20)"
// @Param        session_id  query  string  false  "Filter by session"
// @Success      200  {object}  response.Response{data=response.Page}
// @Router       /api/invoices [get]
func (h *CheckoutHandler) ListInvoices(c *gin.Context) {
	params := pagination.Parse(c)
	filter := repository.InvoiceListFilter{Page: params.Page, Limit: params.Limit}
	if sessionQuery := c.Query("session_id"); sessionQuery != "" {
		sessionID, err := uuid.Parse(sessionQuery)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid session_id"))
			return
		}
		filter.SessionID = &sessionID
	}

	invoices, total, err := h.checkoutService.ListInvoices(c.Request.Context(), middleware.CompanyID(c), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, invoices, total, params.Page, params.Limit))
}

// ListAccounts lists the chart of accounts
// @Summary      List accounts
// @Tags         checkout
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.Account}
// @Router       /api/accounts [get]
func (h *CheckoutHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.ledgerService.ListAccounts(c.Request.Context(), middleware.CompanyID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, accounts))
}

// CreateAccount creates an account
// @Summary      Create account
// @Description  Adds an account to the company's chart of accounts
// @Tags         checkout
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.AccountRequest  true  "Create Account Payload"
// @Success      201      {object}  response.Response{data=model.Account}
// @Failure      400      {object}  response.Response
// @Router       /api/accounts [post]
func (h *CheckoutHandler) CreateAccount(c *gin.Context) {
	var req service.AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	account, err := h.ledgerService.CreateAccount(c.Request.Context(), middleware.CompanyID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, account))
}
