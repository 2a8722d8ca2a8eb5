package sale

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/auth"
	"github.com/uaifestas/festas-go/internal/helpers"
	"github.com/uaifestas/festas-go/internal/qrcode"
)

type Handler struct {
	engine *Engine
	logger *zap.Logger
}

func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// SetupRoutes registers the sale routes on a group that is already behind
// auth.Middleware.
func (h *Handler) SetupRoutes(r *gin.RouterGroup) {
	sales := r.Group("/sales")
	{
		sales.POST("", h.CreateSiteSale)
		sales.POST("/commissioned", h.CreateCommissionedSale)
		sales.POST("/check/:code", h.CheckIn)
		sales.GET("", h.ListSales)
		sales.GET("/code/:code", h.GetSaleByCode)
		sales.GET("/:id", h.GetSale)
		sales.GET("/:id/qrcode", h.QRCode)
		sales.PUT("/:id/cancel", h.CancelSale)
		sales.POST("/:id/resend", h.Resend)
		sales.PUT("/:id/contact", h.UpdateContact)
	}
}

type createRequest struct {
	ProductID  uint   `json:"product_id" binding:"required"`
	BuyerName  string `json:"buyer_name" binding:"required"`
	BuyerEmail string `json:"buyer_email" binding:"required"`
}

type contactRequest struct {
	BuyerName  *string `json:"buyer_name"`
	BuyerEmail *string `json:"buyer_email"`
}

// CreateSiteSale records a sale made through the public site. It has no
// seller of record.
func (h *Handler) CreateSiteSale(c *gin.Context) {
	h.create(c, false)
}

// CreateCommissionedSale records a sale with the caller as the seller.
func (h *Handler) CreateCommissionedSale(c *gin.Context) {
	h.create(c, true)
}

func (h *Handler) create(c *gin.Context, commissioned bool) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid sale data: "+err.Error())
		return
	}

	in := CreateInput{
		ProductID:  req.ProductID,
		BuyerName:  req.BuyerName,
		BuyerEmail: req.BuyerEmail,
	}
	if commissioned {
		seller := auth.MustPrincipal(c).UserID
		in.SellerID = &seller
	}

	result, err := h.engine.CreateSale(c.Request.Context(), in)
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) CheckIn(c *gin.Context) {
	code, ok := parseCode(c)
	if !ok {
		return
	}

	sale, err := h.engine.CheckIn(c.Request.Context(), code, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *Handler) CancelSale(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	sale, err := h.engine.CancelSale(c.Request.Context(), id, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *Handler) Resend(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.engine.ResendNotification(c.Request.Context(), id, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) UpdateContact(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid contact data: "+err.Error())
		return
	}

	result, err := h.engine.UpdateBuyerContact(c.Request.Context(), id, ContactInput(req), auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListSales(c *gin.Context) {
	eventID, ok := helpers.OptionalUintQuery(c, "event_id")
	if !ok {
		return
	}
	productID, ok := helpers.OptionalUintQuery(c, "product_id")
	if !ok {
		return
	}
	sellerID, ok := helpers.OptionalUintQuery(c, "seller_id")
	if !ok {
		return
	}
	offset, ok := helpers.IntQuery(c, "offset", 0)
	if !ok {
		return
	}
	limit, ok := helpers.IntQuery(c, "limit", 0)
	if !ok {
		return
	}

	sales, err := h.engine.ListSales(c.Request.Context(), ListInput{
		EventID:   eventID,
		ProductID: productID,
		SellerID:  sellerID,
		Offset:    offset,
		Limit:     limit,
	}, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func (h *Handler) GetSale(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	sale, err := h.engine.GetSale(c.Request.Context(), id, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *Handler) GetSaleByCode(c *gin.Context) {
	code, ok := parseCode(c)
	if !ok {
		return
	}

	sale, err := h.engine.GetSaleByCode(c.Request.Context(), code, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

// QRCode serves the sale's ticket code as a PNG.
func (h *Handler) QRCode(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	sale, err := h.engine.GetSale(c.Request.Context(), id, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}

	png, err := qrcode.Render(sale.UniqueCode.String())
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func parseCode(c *gin.Context) (uuid.UUID, bool) {
	code, err := uuid.Parse(c.Param("code"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "invalid sale code")
		return uuid.Nil, false
	}
	return code, true
}
