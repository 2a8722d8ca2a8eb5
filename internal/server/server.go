// Package server assembles the HTTP API.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/auth"
	"github.com/uaifestas/festas-go/internal/config"
	"github.com/uaifestas/festas-go/internal/notify"
	"github.com/uaifestas/festas-go/internal/services/account"
	"github.com/uaifestas/festas-go/internal/services/event"
	"github.com/uaifestas/festas-go/internal/services/sale"
	"github.com/uaifestas/festas-go/internal/services/stats"
	"github.com/uaifestas/festas-go/internal/store"
)

const serviceName = "festas-api"

// New builds the router with every service wired over st. Ticket emails
// go to notifier.
func New(cfg *config.Config, st store.Store, notifier notify.Dispatcher, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), cors())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	public := r.Group("/v1")
	protected := r.Group("/v1", auth.Middleware(cfg))

	account.NewHandler(account.NewService(cfg, st, logger), logger).SetupRoutes(public, protected)
	event.NewHandler(event.NewService(st, logger), logger).SetupRoutes(public, protected)
	sale.NewHandler(sale.NewEngine(st, notifier, logger), logger).SetupRoutes(protected)
	stats.NewHandler(stats.NewService(st), logger).SetupRoutes(protected)

	return r
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
