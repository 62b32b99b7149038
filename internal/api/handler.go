package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"basket-service/internal/service"
	"basket-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency probed by the readiness check
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	baskets *service.BasketService
	orders  *service.OrderConverter
	checks  map[string]Pinger
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(baskets *service.BasketService, orders *service.OrderConverter, checks map[string]Pinger) *Handler {
	return &Handler{
		baskets: baskets,
		orders:  orders,
		checks:  checks,
		logger:  util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(requesterMiddleware())
	{
		v1.POST("/basket/new/", h.newBasket)
		v1.GET("/basket/:id/", h.getBasket)
		v1.POST("/basket/:id/add/", h.addItem)
		v1.POST("/basket/:id/add_from_order/", h.addFromOrder)
		v1.POST("/basket/:id/update_quantity/", h.updateQuantity)
		v1.POST("/basket/:id/remove/", h.removeLine)
		v1.POST("/basket/:id/clear/", h.clear)
		v1.POST("/basket/:id/add_code/", h.addCode)
		v1.POST("/basket/:id/remove_code/", h.removeCode)
		v1.POST("/basket/:id/set_shipping_address/", h.setShippingAddress)
		v1.POST("/basket/:id/set_billing_address/", h.setBillingAddress)
		v1.POST("/basket/:id/set_shipping_method/", h.setShippingMethod)
		v1.POST("/basket/:id/set_payment_method/", h.setPaymentMethod)
		v1.POST("/basket/:id/create_order/", h.createOrder)

		v1.GET("/order/:id/", h.getOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing service
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type newBasketRequest struct {
	Shop *int64 `json:"shop" form:"shop"`
}

// newBasket handles basket creation
func (h *Handler) newBasket(c *gin.Context) {
	var req newBasketRequest
	if !bind(c, &req) {
		return
	}

	basket, err := h.baskets.NewBasket(c.Request.Context(), req.Shop)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, basket)
}

// getBasket handles basket retrieval
func (h *Handler) getBasket(c *gin.Context) {
	basket, err := h.baskets.Get(c.Request.Context(), c.Param("id"))
	h.respond(c, basket, err)
}

type addItemRequest struct {
	ShopProduct *int64 `json:"shop_product" form:"shop_product"`
	Product     *int64 `json:"product" form:"product"`
	Shop        *int64 `json:"shop" form:"shop"`
	Quantity    *int   `json:"quantity" form:"quantity"`
}

// addItem handles adding a product to a basket
func (h *Handler) addItem(c *gin.Context) {
	var req addItemRequest
	if !bind(c, &req) {
		return
	}

	basket, err := h.baskets.AddItem(c.Request.Context(), c.Param("id"), service.AddItemRequest{
		ShopProductID: req.ShopProduct,
		ProductID:     req.Product,
		ShopID:        req.Shop,
		Quantity:      req.Quantity,
	})
	h.respond(c, basket, err)
}

type addFromOrderRequest struct {
	Order *int64 `json:"order" form:"order"`
}

// addFromOrder handles copying lines of a previous order into a basket
func (h *Handler) addFromOrder(c *gin.Context) {
	var req addFromOrderRequest
	if !bind(c, &req) {
		return
	}
	if req.Order == nil {
		fieldRequired(c, "order")
		return
	}

	basket, err := h.baskets.AddFromOrder(c.Request.Context(), c.Param("id"), *req.Order)
	h.respond(c, basket, err)
}

type lineRequest struct {
	LineID   string `json:"line_id" form:"line_id"`
	Quantity *int   `json:"quantity" form:"quantity"`
}

// updateQuantity handles changing the quantity of a line
func (h *Handler) updateQuantity(c *gin.Context) {
	var req lineRequest
	if !bind(c, &req) {
		return
	}
	if req.Quantity == nil {
		fieldRequired(c, "quantity")
		return
	}

	basket, err := h.baskets.UpdateQuantity(c.Request.Context(), c.Param("id"), req.LineID, *req.Quantity)
	h.respond(c, basket, err)
}

// removeLine handles removing a line
func (h *Handler) removeLine(c *gin.Context) {
	var req lineRequest
	if !bind(c, &req) {
		return
	}

	basket, err := h.baskets.RemoveLine(c.Request.Context(), c.Param("id"), req.LineID)
	h.respond(c, basket, err)
}

// clear handles removing every line
func (h *Handler) clear(c *gin.Context) {
	basket, err := h.baskets.Clear(c.Request.Context(), c.Param("id"))
	h.respond(c, basket, err)
}

type codeRequest struct {
	Code string `json:"code" form:"code"`
}

// addCode handles applying a coupon code
func (h *Handler) addCode(c *gin.Context) {
	var req codeRequest
	if !bind(c, &req) {
		return
	}

	basket, err := h.baskets.AddCode(c.Request.Context(), c.Param("id"), req.Code)
	h.respond(c, basket, err)
}

// removeCode handles withdrawing a coupon code
func (h *Handler) removeCode(c *gin.Context) {
	var req codeRequest
	if !bind(c, &req) {
		return
	}

	basket, err := h.baskets.RemoveCode(c.Request.Context(), c.Param("id"), req.Code)
	h.respond(c, basket, err)
}

type addressRequest struct {
	ID         *int64 `json:"id" form:"id"`
	Prefix     string `json:"prefix" form:"prefix"`
	Name       string `json:"name" form:"name"`
	Street     string `json:"street" form:"street"`
	PostalCode string `json:"postal_code" form:"postal_code"`
	City       string `json:"city" form:"city"`
	Country    string `json:"country" form:"country"`
}

func (r addressRequest) toService() service.AddressRequest {
	return service.AddressRequest{
		ID:         r.ID,
		Prefix:     r.Prefix,
		Name:       r.Name,
		Street:     r.Street,
		PostalCode: r.PostalCode,
		City:       r.City,
		Country:    r.Country,
	}
}

// setShippingAddress handles attaching a shipping address
func (h *Handler) setShippingAddress(c *gin.Context) {
	var req addressRequest
	if !bind(c, &req) {
		return
	}

	basket, err := h.baskets.SetShippingAddress(c.Request.Context(), c.Param("id"), req.toService())
	h.respond(c, basket, err)
}

// setBillingAddress handles attaching a billing address
func (h *Handler) setBillingAddress(c *gin.Context) {
	var req addressRequest
	if !bind(c, &req) {
		return
	}

	basket, err := h.baskets.SetBillingAddress(c.Request.Context(), c.Param("id"), req.toService())
	h.respond(c, basket, err)
}

type methodRequest struct {
	ID *int64 `json:"id" form:"id"`
}

// setShippingMethod handles selecting a shipping method
func (h *Handler) setShippingMethod(c *gin.Context) {
	var req methodRequest
	if !bind(c, &req) {
		return
	}
	if req.ID == nil {
		fieldRequired(c, "id")
		return
	}

	basket, err := h.baskets.SetShippingMethod(c.Request.Context(), c.Param("id"), *req.ID)
	h.respond(c, basket, err)
}

// setPaymentMethod handles selecting a payment method
func (h *Handler) setPaymentMethod(c *gin.Context) {
	var req methodRequest
	if !bind(c, &req) {
		return
	}
	if req.ID == nil {
		fieldRequired(c, "id")
		return
	}

	basket, err := h.baskets.SetPaymentMethod(c.Request.Context(), c.Param("id"), *req.ID)
	h.respond(c, basket, err)
}

// createOrder handles converting a basket into an order
func (h *Handler) createOrder(c *gin.Context) {
	order, err := h.orders.CreateOrder(c.Request.Context(), c.Param("id"), c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	h.respond(c, order, err)
}

func (h *Handler) respond(c *gin.Context, body interface{}, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

// respondError maps service errors to status codes; anything else is a 500
func (h *Handler) respondError(c *gin.Context, err error) {
	e, ok := service.AsError(err)
	if !ok {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	body := gin.H{"error": e.Message}
	for field, msg := range e.Fields {
		body[field] = []string{msg}
	}
	if len(e.Errors) > 0 {
		body["errors"] = e.Errors
	}
	c.JSON(statusFor(e.Kind), body)
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// bind decodes a JSON or form body; an empty body leaves obj untouched
func bind(c *gin.Context, obj interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBind(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func fieldRequired(c *gin.Context, field string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": service.MsgFieldRequired,
		field:   []string{service.MsgFieldRequired},
	})
}

// requesterMiddleware reads the trusted X-User-ID header into the request context
func requesterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("X-User-ID")
		if header == "" {
			c.Next()
			return
		}

		userID, err := strconv.ParseInt(header, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Invalid X-User-ID header",
			})
			return
		}

		c.Request = c.Request.WithContext(service.WithRequester(c.Request.Context(), userID))
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
