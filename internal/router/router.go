package router

import (
	"context"
	"net/http"
	"strings"

	"github.com/diticoms/service-desk/api"
	"github.com/diticoms/service-desk/internal/handler"
	"github.com/diticoms/service-desk/internal/logger"
	"github.com/diticoms/service-desk/internal/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const (
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathSwagger = "/swagger"
	PathAPI     = "/api/v1"
)

type Handlers struct {
	Auth      *handler.AuthHandler
	Tickets   *handler.TicketHandler
	Invoices  *handler.InvoiceHandler
	Settings  *handler.SettingsHandler
	Assistant *handler.AssistantHandler
	Ready     func(ctx context.Context) error
}

func New(h Handlers, tokens *middleware.Tokens, log *zap.Logger) http.Handler {
	r := gin.New()
	r.Use(middleware.RequestID(), logger.GinMiddleware(log), logger.Recovery(log), middleware.CORS())

	r.GET(PathHealth, handler.Health)
	r.GET(PathReady, handler.Ready(h.Ready))
	r.GET(PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, PathSwagger+"/") })
	r.GET(PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = PathSwagger + "/index.html"
			c.Request.RequestURI = PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(PathSwagger+"/openapi.json"))(c)
	})

	v1 := r.Group(PathAPI)
	{
		v1.POST("/auth/login", h.Auth.Login)
		v1.GET("/config", h.Settings.Config)
		v1.PUT("/config", middleware.OptionalJWTAuth(tokens), h.Settings.SaveConfig)
	}

	authed := v1.Group("", middleware.JWTAuth(tokens))
	{
		authed.GET("/auth/me", h.Auth.Me)

		authed.GET("/tickets", h.Tickets.List)
		authed.POST("/tickets", h.Tickets.Create)
		authed.POST("/tickets/refresh", h.Tickets.Refresh)
		authed.GET("/tickets/:id", h.Tickets.Get)
		authed.PUT("/tickets/:id", h.Tickets.Update)
		authed.DELETE("/tickets/:id", middleware.RequireAdmin(), h.Tickets.Delete)
		authed.GET("/tickets/:id/share-text", h.Tickets.ShareText)
		authed.GET("/tickets/:id/invoice.html", h.Invoices.HTML)
		authed.GET("/tickets/:id/invoice.png", h.Invoices.PNG)
		authed.POST("/tickets/:id/invoice/share", h.Invoices.Share)

		authed.GET("/reports/tickets.xlsx", h.Tickets.Export)

		authed.GET("/settings", h.Settings.Get)
		authed.PUT("/settings/technicians", middleware.RequireAdmin(), h.Settings.SaveTechnicians)

		authed.POST("/assistant/ask", h.Assistant.Ask)
		authed.POST("/assistant/diagnose", h.Assistant.Diagnose)
	}

	return r
}
