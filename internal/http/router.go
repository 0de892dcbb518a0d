package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/valetops/leads-service/internal/http/middleware"
)

// NewRouter wires every route. Leads have no delete endpoint anywhere.
func NewRouter(handler *Handler, authMiddleware gin.HandlerFunc, environment string, allowedOrigins []string) *gin.Engine {
	if environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	api.POST("/auth/signup", handler.signup)
	api.POST("/auth/login", handler.login)

	// Public wizard surface: create, fetch/edit by reference link, files.
	api.POST("/leads", handler.createLead)
	api.GET("/leads/:ref", handler.getLeadByReference)
	api.PUT("/leads/:ref", handler.updateLeadPublic)
	api.GET("/files/:id", handler.serveFile)

	admin := api.Group("/admin")
	admin.Use(authMiddleware, middleware.RequireAdmin())
	admin.GET("/leads", handler.listLeads)
	admin.GET("/leads/export", handler.exportLeads)
	admin.GET("/leads/:id", handler.getLead)
	admin.PUT("/leads/:id", handler.updateLead)
	admin.PUT("/leads/:id/status", handler.updateStatus)
	admin.GET("/leads/:id/pdf", handler.exportLeadPDF)

	return router
}
