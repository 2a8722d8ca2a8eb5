package event

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/auth"
	"github.com/uaifestas/festas-go/internal/authz"
	"github.com/uaifestas/festas-go/internal/helpers"
	"github.com/uaifestas/festas-go/internal/models"
)

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// SetupRoutes registers the public catalog reads on public and the
// rest on protected, which must be behind auth.Middleware.
func (h *Handler) SetupRoutes(public, protected *gin.RouterGroup) {
	public.GET("/events/search", h.SearchEvents)
	public.GET("/events/:id", h.GetEvent)
	public.GET("/events/:id/products", h.ListProducts)

	protected.POST("/events", h.CreateEvent)
	protected.GET("/events", h.ListEvents)
	protected.PUT("/events/:id", h.UpdateEvent)
	protected.PATCH("/events/:id/status", h.UpdateEventStatus)
	protected.DELETE("/events/:id", h.DeleteEvent)

	protected.POST("/events/:id/products", h.CreateProduct)
	protected.PUT("/products/:id", h.UpdateProduct)

	protected.POST("/events/:id/administrators", h.AddAdministrator)
	protected.POST("/events/:id/commissioners", h.AddCommissioner)
}

type createEventRequest struct {
	Name         string    `json:"name" binding:"required,max=100"`
	Description  string    `json:"description"`
	Street       string    `json:"street"`
	Cep          string    `json:"cep" binding:"max=9"`
	Neighborhood string    `json:"neighborhood"`
	Number       string    `json:"number"`
	City         string    `json:"city"`
	EventDate    time.Time `json:"eventDate" binding:"required"`
	ImageURL     string    `json:"imageUrl"`
}

type updateEventRequest struct {
	Name         *string             `json:"name"`
	Description  *string             `json:"description"`
	Street       *string             `json:"street"`
	Cep          *string             `json:"cep"`
	Neighborhood *string             `json:"neighborhood"`
	Number       *string             `json:"number"`
	City         *string             `json:"city"`
	EventDate    *time.Time          `json:"eventDate"`
	ImageURL     *string             `json:"imageUrl"`
	Status       *models.EventStatus `json:"status"`
}

type statusRequest struct {
	Status models.EventStatus `json:"status" binding:"required"`
}

type productRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Stock       *int            `json:"stock"`
}

type updateProductRequest struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Price       *decimal.Decimal      `json:"price"`
	ImageURL    *string               `json:"imageUrl"`
	Stock       *int                  `json:"stock"`
	Unlimited   bool                  `json:"unlimited"`
	Status      *models.ProductStatus `json:"status"`
}

type memberRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid event data: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(c.Request.Context(), EventInput(req), auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.svc.ListEvents(c.Request.Context(), auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) SearchEvents(c *gin.Context) {
	limit, ok := helpers.IntQuery(c, "limit", 0)
	if !ok {
		return
	}

	events, err := h.svc.SearchEvents(c.Request.Context(), SearchInput{
		Term:  c.Query("term"),
		City:  c.Query("city"),
		Date:  c.Query("date"),
		Limit: limit,
	})
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

func (h *Handler) GetEvent(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	event, err := h.svc.GetEvent(c.Request.Context(), id)
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid event data: "+err.Error())
		return
	}

	event, err := h.svc.UpdateEvent(c.Request.Context(), id, EventPatch(req), auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) UpdateEventStatus(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid status: "+err.Error())
		return
	}

	event, err := h.svc.UpdateEventStatus(c.Request.Context(), id, req.Status, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteEvent(c.Request.Context(), id, auth.MustPrincipal(c)); err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Event deleted successfully",
	})
}

func (h *Handler) ListProducts(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	products, err := h.svc.ListProducts(c.Request.Context(), id)
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) CreateProduct(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid product data: "+err.Error())
		return
	}

	product, err := h.svc.CreateProduct(c.Request.Context(), id, ProductInput(req), auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid product data: "+err.Error())
		return
	}

	patch := ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
		ClearStock:  req.Unlimited,
		Status:      req.Status,
	}
	product, err := h.svc.UpdateProduct(c.Request.Context(), id, patch, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) AddAdministrator(c *gin.Context) {
	h.addMember(c, h.svc.AddEventAdministrator)
}

func (h *Handler) AddCommissioner(c *gin.Context) {
	h.addMember(c, h.svc.AddEventCommissioner)
}

func (h *Handler) addMember(c *gin.Context, add func(ctx context.Context, eventID uint, email string, p authz.Principal) (*models.Event, error)) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid member data: "+err.Error())
		return
	}

	event, err := add(c.Request.Context(), id, req.Email, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, event)
}
