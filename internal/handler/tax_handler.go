package handler

import (
	"errors"
	"net/http"

	"posfinance/internal/middleware"
	"posfinance/internal/model"
	"posfinance/internal/service"
	"posfinance/internal/taxcalc"
	"posfinance/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TaxHandler struct {
	taxService service.TaxService
}

func NewTaxHandler(taxService service.TaxService) *TaxHandler {
	return &TaxHandler{taxService: taxService}
}

func (h *TaxHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api")
	{
		api.GET("/tax/categories", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.ListCategories)
		api.POST("/tax/categories", middleware.RequireRole(model.RoleAdmin), h.CreateCategory)
		api.GET("/tax/rates", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.ListRates)
		api.POST("/tax/rates", middleware.RequireRole(model.RoleAdmin), h.CreateRate)
		api.PUT("/tax/rates/:id", middleware.RequireRole(model.RoleAdmin), h.UpdateRate)
		api.DELETE("/tax/rates/:id", middleware.RequireRole(model.RoleAdmin), h.DeleteRate)
		api.POST("/tax/calculate", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.Calculate)
		api.POST("/tax/withholding", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.CalculateWithholding)
	}
}

// ListCategories lists tax categories
// @Summary      List tax categories
// @Tags         tax
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.TaxCategory}
// @Router       /api/tax/categories [get]
func (h *TaxHandler) ListCategories(c *gin.Context) {
	categories, err := h.taxService.ListCategories(c.Request.Context(), middleware.CompanyID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, categories))
}

// CreateCategory creates a tax category
// @Summary      Create tax category
// @Description  Creates a tax category with optional withholding configuration
// @Tags         tax
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.TaxCategoryRequest  true  "Create Category Payload"
// @Success      201      {object}  response.Response{data=model.TaxCategory}
// @Failure      400      {object}  response.Response
// @Router       /api/tax/categories [post]
func (h *TaxHandler) CreateCategory(c *gin.Context) {
	var req service.TaxCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	category, err := h.taxService.CreateCategory(c.Request.Context(), middleware.CompanyID(c), middleware.UserID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, category))
}

// ListRates lists tax rates
// @Summary      List tax rates
// @Tags         tax
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.TaxRate}
// @Router       /api/tax/rates [get]
func (h *TaxHandler) ListRates(c *gin.Context) {
	rates, err := h.taxService.ListRates(c.Request.Context(), middleware.CompanyID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rates))
}

// CreateRate creates a tax rate
// @Summary      Create tax rate
// @Description  Creates a rate within a category; overlapping effective windows for plain percentage rates are rejected
// @Tags         tax
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.TaxRateRequest  true  "Create Rate Payload"
// @Success      201      {object}  response.Response{data=model.TaxRate}
// @Failure      400      {object}  response.Response
// @Router       /api/tax/rates [post]
func (h *TaxHandler) CreateRate(c *gin.Context) {
	var req service.TaxRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rate, err := h.taxService.CreateRate(c.Request.Context(), middleware.CompanyID(c), middleware.UserID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rate))
}

// UpdateRate updates an unlocked tax rate
// @Summary      Update tax rate
// @Description  Updates a rate; fails with 409 once the rate is referenced by a posted invoice
// @Tags         tax
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Rate ID"
// @Param        payload  body      service.TaxRateRequest  true  "Update Rate Payload"
// @Success      200      {object}  response.Response{data=model.TaxRate}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response  "Rate is locked"
// @Router       /api/tax/rates/{id} [put]
func (h *TaxHandler) UpdateRate(c *gin.Context) {
	rateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid rate ID"))
		return
	}

	var req service.TaxRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rate, err := h.taxService.UpdateRate(c.Request.Context(), middleware.CompanyID(c), rateID, middleware.UserID(c), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrTaxRateLocked) {
			status = http.StatusConflict
		}
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rate))
}

// DeleteRate deletes an unlocked tax rate
// @Summary      Delete tax rate
// @Tags         tax
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Rate ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response  "Rate is locked"
// @Router       /api/tax/rates/{id} [delete]
func (h *TaxHandler) DeleteRate(c *gin.Context) {
	rateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid rate ID"))
		return
	}

	if err := h.taxService.DeleteRate(c.Request.Context(), middleware.CompanyID(c), rateID, middleware.UserID(c)); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrTaxRateLocked) {
			status = http.StatusConflict
		}
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": rateID}))
}

// Calculate computes tax for a set of lines
// @Summary      Calculate tax
// @Description  Computes per-line and document tax in the company's inclusive or exclusive mode
// @Tags         tax
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CalculateTaxRequest  true  "Lines to tax"
// @Success      200      {object}  response.Response{data=object}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response  "Tax configuration missing"
// @Router       /api/tax/calculate [post]
func (h *TaxHandler) Calculate(c *gin.Context) {
	var req service.CalculateTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	document, lines, err := h.taxService.Calculate(c.Request.Context(), middleware.CompanyID(c), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, taxcalc.ErrTaxConfigurationMissing) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"document": document,
		"lines":    lines,
	}))
}

// CalculateWithholding computes payment-side withholding
// @Summary      Calculate withholding
// @Description  Computes withholding for a payment amount against a category's resident or non-resident rate
// @Tags         tax
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.WithholdingRequest  true  "Withholding Payload"
// @Success      200      {object}  response.Response{data=taxcalc.WithholdingResult}
// @Failure      400      {object}  response.Response
// @Router       /api/tax/withholding [post]
func (h *TaxHandler) CalculateWithholding(c *gin.Context) {
	var req service.WithholdingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.taxService.CalculateWithholding(c.Request.Context(), middleware.CompanyID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
