package stats

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/auth"
	"github.com/uaifestas/festas-go/internal/helpers"
	"github.com/uaifestas/festas-go/internal/store"
)

type Handler struct {
	svc    *Service
	logger *zap.Logger
	now    func() time.Time
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger, now: time.Now}
}

// SetupRoutes registers the dashboard routes on a group that is already
// behind auth.Middleware.
func (h *Handler) SetupRoutes(r *gin.RouterGroup) {
	dashboard := r.Group("/dashboard/event/:id")
	{
		dashboard.GET("", h.Statistics)
		dashboard.GET("/sellers", h.Sellers)
		dashboard.GET("/products", h.Products)
		dashboard.GET("/summary", h.Summary)
	}
}

func (h *Handler) window(c *gin.Context) (store.Window, bool) {
	days, ok := helpers.IntQuery(c, "days", DefaultDays)
	if !ok {
		return store.Window{}, false
	}
	w, err := ParseWindow(c.Query("start"), c.Query("end"), days, h.now())
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return store.Window{}, false
	}
	return w, true
}

func (h *Handler) Statistics(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}
	w, ok := h.window(c)
	if !ok {
		return
	}

	stats, err := h.svc.GetStatistics(c.Request.Context(), id, w, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Sellers(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}
	w, ok := h.window(c)
	if !ok {
		return
	}
	sellerID, ok := helpers.OptionalUintQuery(c, "seller_id")
	if !ok {
		return
	}

	sellers, err := h.svc.GetSellerStatistics(c.Request.Context(), id, w, auth.MustPrincipal(c), sellerID)
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sellers)
}

func (h *Handler) Products(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}
	limit, ok := helpers.IntQuery(c, "limit", 0)
	if !ok {
		return
	}

	products, err := h.svc.GetProductStatistics(c.Request.Context(), id, OrderBy(c.Query("order_by")), limit, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) Summary(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	summary, err := h.svc.GetEventSummary(c.Request.Context(), id, auth.MustPrincipal(c))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
