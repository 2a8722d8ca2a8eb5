package account

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/auth"
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

// SetupRoutes registers the public auth routes on public and the account
// routes on protected, which must be behind auth.Middleware.
func (h *Handler) SetupRoutes(public, protected *gin.RouterGroup) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)

	protected.GET("/users/me", h.Me)
	protected.DELETE("/users/:id", h.DeleteUser)
}

type registerRequest struct {
	Email    string      `json:"email" binding:"required,email"`
	Username string      `json:"username" binding:"required"`
	Password string      `json:"password" binding:"required,min=6"`
	Role     models.Role `json:"role"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid request data: "+err.Error())
		return
	}

	user, err := h.svc.Register(c.Request.Context(), RegisterInput(req))
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid request data: "+err.Error())
		return
	}

	session, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.GetUser(c.Request.Context(), auth.MustPrincipal(c).UserID)
	if err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := helpers.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteUser(c.Request.Context(), id, auth.MustPrincipal(c)); err != nil {
		helpers.RespondWithAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User deleted successfully",
	})
}
