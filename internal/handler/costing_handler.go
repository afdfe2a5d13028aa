package handler

import (
	"errors"
	"net/http"

	"posfinance/internal/costing"
	"posfinance/internal/middleware"
	"posfinance/internal/model"
	"posfinance/internal/service"
	"posfinance/pkg/pagination"
	"posfinance/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CostingHandler struct {
	costingService service.CostingService
	itemService    service.ItemService
}

func NewCostingHandler(costingService service.CostingService, itemService service.ItemService) *CostingHandler {
	return &CostingHandler{costingService: costingService, itemService: itemService}
}

func (h *CostingHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api")
	{
		api.GET("/items", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.ListItems)
		api.POST("/items", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.CreateItem)
		api.GET("/items/:id", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.GetItem)
		api.PUT("/items/:id", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.UpdateItem)
		api.GET("/items/:id/batches", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.ListBatches)
		api.GET("/items/:id/consumptions", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.ListConsumptions)
		api.POST("/items/:id/suggest-price", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.SuggestPrice)
		api.POST("/items/:id/validate-price", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.ValidatePrice)
		api.POST("/purchases", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.RecordPurchase)
		api.POST("/consumptions", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.Consume)
		api.GET("/price-tiers", middleware.RequireRole(model.RoleAdmin, model.RoleManager, model.RoleCashier), h.ListTiers)
		api.POST("/price-tiers", middleware.RequireRole(model.RoleAdmin, model.RoleManager), h.CreateTier)
	}
}

// ListItems handles retrieving paginated items
// @Summary      List items
// @Description  Retrieves a paginated list of items
// @Tags         costing
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by name or SKU"
// @Success      200    {object}  response.Response{data=response.Page}
// @Failure      500    {object}  response.Response
// @Router       /api/items [get]
func (h *CostingHandler) ListItems(c *gin.Context) {
	params := pagination.Parse(c)
	items, total, err := h.itemService.List(c.Request.Context(), middleware.CompanyID(c), params.Page, params.Limit, c.Query("search"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to retrieve items: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, items, total, params.Page, params.Limit))
}

// CreateItem creates a new item
// @Summary      Create item
// @Description  Creates a new sellable item
// @Tags         costing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateItemRequest  true  "Create Item Payload"
// @Success      201      {object}  response.Response{data=model.Item}
// @Failure      400      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/items [post]
func (h *CostingHandler) CreateItem(c *gin.Context) {
	var req service.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	item, err := h.itemService.Create(c.Request.Context(), middleware.CompanyID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, item))
}

// GetItem retrieves a single item
// @Summary      Get item
// @Description  Retrieves an item by ID
// @Tags         costing
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Item ID"
// @Success      200  {object}  response.Response{data=model.Item}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/items/{id} [get]
func (h *CostingHandler) GetItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid item ID"))
		return
	}

	item, err := h.itemService.Get(c.Request.Context(), middleware.CompanyID(c), itemID)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// UpdateItem updates an item
// @Summary      Update item
// @Description  Updates an item's details by ID
// @Tags         costing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Item ID"
// @Param        payload  body      service.UpdateItemRequest  true  "Update Item Payload"
// @Success      200      {object}  response.Response{data=model.Item}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/items/{id} [put]
func (h *CostingHandler) UpdateItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid item ID"))
		return
	}

	var req service.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	item, err := h.itemService.Update(c.Request.Context(), middleware.CompanyID(c), itemID, req)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// RecordPurchase records a purchase batch
// @Summary      Record purchase
// @Description  Records a received stock batch with its landed costs and refreshes the item's derived costing
// @Tags         costing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RecordPurchaseRequest  true  "Record Purchase Payload"
// @Success      201      {object}  response.Response{data=service.BatchResponse}
// @Failure      400      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/purchases [post]
func (h *CostingHandler) RecordPurchase(c *gin.Context) {
	var req service.RecordPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	batch, err := h.costingService.RecordPurchase(c.Request.Context(), middleware.CompanyID(c), middleware.UserID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, batch))
}

// Consume consumes stock manually
// @Summary      Consume stock
// @Description  Consumes stock from batches by FIFO or LIFO for adjustments outside a sale
// @Tags         costing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ConsumeRequest  true  "Consume Payload"
// @Success      200      {object}  response.Response{data=[]service.ConsumptionResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response  "Insufficient stock"
// @Router       /api/consumptions [post]
func (h *CostingHandler) Consume(c *gin.Context) {
	var req service.ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	allocations, err := h.costingService.Consume(c.Request.Context(), middleware.CompanyID(c), middleware.UserID(c), req)
	if err != nil {
		c.JSON(statusForConsumeError(err), response.Error(statusForConsumeError(err), err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, allocations))
}

func statusForConsumeError(err error) int {
	var insufficient *costing.InsufficientStockError
	if errors.As(err, &insufficient) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

// ListBatches lists an item's batches
// @Summary      List batches
// @Description  Lists the batches of an item including depleted ones
// @Tags         costing
// @Security     BearerAuth
// @Produce      json
// @Param        id  path      string  true  "Item ID"
// @Success      200  {object}  response.Response{data=[]service.BatchResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/items/{id}/batches [get]
func (h *CostingHandler) ListBatches(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid item ID"))
		return
	}

	batches, err := h.costingService.ListBatches(c.Request.Context(), middleware.CompanyID(c), itemID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, batches))
}

// ListConsumptions lists an item's consumption history
// @Summary      List consumptions
// @Description  Retrieves the paginated consumption (stock issue) history of an item
// @Tags         costing
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Item ID"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Failure      400    {object}  response.Response
// @Failure      500    {object}  response.Response
// @Router       /api/items/{id}/consumptions [get]
func (h *CostingHandler) ListConsumptions(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid item ID"))
		return
	}

	params := pagination.Parse(c)
	consumptions, total, err := h.costingService.ListConsumptions(c.Request.Context(), middleware.CompanyID(c), itemID, params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, consumptions, total, params.Page, params.Limit))
}

// SuggestPrice derives a selling price suggestion
// @Summary      Suggest selling price
// @Description  Derives a selling price from the item's cost basis, margin policy, tier discount, and rounding policy
// @Tags         costing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Item ID"
// @Param        payload  body      service.SuggestPriceRequest  true  "Overrides"
// @Success      200      {object}  response.Response{data=service.SuggestedPriceResponse}
// @Success      204      "No cost basis available"
// @Failure      400      {object}  response.Response
// @Router       /api/items/{id}/suggest-price [post]
func (h *CostingHandler) SuggestPrice(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid item ID"))
		return
	}

	var req service.SuggestPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	suggestion, err := h.costingService.SuggestSellingPrice(c.Request.Context(), middleware.CompanyID(c), itemID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	if suggestion == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, suggestion))
}

// ValidatePrice validates a proposed selling price
// @Summary      Validate price
// @Description  Checks a proposed price against the item's floor price and cost basis
// @Tags         costing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Item ID"
// @Param        payload  body      service.ValidatePriceRequest  true  "Proposed price"
// @Success      200      {object}  response.Response{data=costing.PriceValidation}
// @Failure      400      {object}  response.Response
// @Router       /api/items/{id}/validate-price [post]
func (h *CostingHandler) ValidatePrice(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid item ID"))
		return
	}

	var req service.ValidatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	validation, err := h.costingService.ValidatePrice(c.Request.Context(), middleware.CompanyID(c), itemID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, validation))
}

// ListTiers lists price tiers
// @Summary      List price tiers
// @Tags         costing
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.PriceTier}
// @Router       /api/price-tiers [get]
func (h *CostingHandler) ListTiers(c *gin.Context) {
	tiers, err := h.itemService.ListTiers(c.Request.Context(), middleware.CompanyID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tiers))
}

// CreateTier creates a price tier
// @Summary      Create price tier
// @Tags         costing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.PriceTierRequest  true  "Create Tier Payload"
// @Success      201      {object}  response.Response{data=model.PriceTier}
// @Failure      400      {object}  response.Response
// @Router       /api/price-tiers [post]
func (h *CostingHandler) CreateTier(c *gin.Context) {
	var req service.PriceTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tier, err := h.itemService.CreateTier(c.Request.Context(), middleware.CompanyID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tier))
}
