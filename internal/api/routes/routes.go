// internal/api/routes/routes.go
package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"waste-tracking-api-server/config"
	"waste-tracking-api-server/internal/api/handlers"
	"waste-tracking-api-server/internal/api/middleware"
	"waste-tracking-api-server/internal/auth"
	"waste-tracking-api-server/internal/models"
	"waste-tracking-api-server/internal/service"
	"waste-tracking-api-server/internal/socket"
	"waste-tracking-api-server/internal/store"
)

// Pinger reports whether the backing database is reachable.
type Pinger func(ctx context.Context) error

type Dependencies struct {
	Cfg       config.Config
	Tokens    *auth.Tokens
	Users     store.UserStore
	Companies store.CompanyStore
	Drivers   store.DriverStore
	Shipments *service.ShipmentService
	Tracking  *service.TrackingService
	Hub       *socket.Hub
	Gatherer  prometheus.Gatherer
	Ping      Pinger
}

// SetupRouter wires handlers and role guards onto a gin engine.
func SetupRouter(d Dependencies) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = d.Cfg.Server.AllowedOrigins
	if len(corsConfig.AllowOrigins) == 0 || (len(corsConfig.AllowOrigins) == 1 && corsConfig.AllowOrigins[0] == "*") {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowHeaders("Authorization")
	router.Use(cors.New(corsConfig))

	userHandler := &handlers.UserHandler{Users: d.Users, Tokens: d.Tokens}
	companyHandler := &handlers.CompanyHandler{Companies: d.Companies}
	driverHandler := &handlers.DriverHandler{Drivers: d.Drivers, Tracking: d.Tracking}
	shipmentHandler := &handlers.ShipmentHandler{Shipments: d.Shipments, Tracking: d.Tracking}
	webSocketHandler := &handlers.WebSocketHandler{Hub: d.Hub, Tokens: d.Tokens}

	router.GET("/healthz", health(d.Ping, d.Hub))
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/healthz", health(d.Ping, d.Hub))
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/login", userHandler.Login)
		}

		// Everything below requires a valid token.
		protected := apiV1.Group("/")
		protected.Use(middleware.Authenticate(d.Tokens))

		admin := protected.Group("/admin")
		admin.Use(middleware.Authorize(models.RoleAdmin))
		{
			admin.POST("/users", userHandler.CreateUser)
		}

		companies := protected.Group("/companies")
		{
			companies.GET("", companyHandler.GetAllCompanies)
			companies.GET("/:id", companyHandler.GetCompanyByID)
			companies.POST("", middleware.Authorize(models.RoleAdmin), companyHandler.CreateCompany)
			companies.PUT("/:id", middleware.Authorize(models.RoleAdmin), companyHandler.UpdateCompany)
		}

		drivers := protected.Group("/drivers")
		{
			drivers.GET("/positions", driverHandler.GetPositions)
			drivers.GET("", middleware.Authorize(models.RoleAdmin, models.RoleTransporter), driverHandler.GetAllDrivers)
			drivers.POST("", middleware.Authorize(models.RoleAdmin, models.RoleTransporter), driverHandler.CreateDriver)
			drivers.GET("/:id", driverHandler.GetDriver)
			drivers.GET("/:id/locations", driverHandler.GetLocationHistory)

			// Self-reporting: the service checks the driver matches the caller.
			reporting := drivers.Group("/:id")
			reporting.Use(middleware.Authorize(models.RoleAdmin, models.RoleDriver))
			{
				reporting.POST("/locations", driverHandler.RecordLocation)
				reporting.POST("/route-points", driverHandler.AddRoutePoint)
				reporting.POST("/tracking/start", driverHandler.StartTracking)
				reporting.POST("/tracking/stop", driverHandler.StopTracking)
				reporting.POST("/ping", driverHandler.Ping)
			}
		}

		shipments := protected.Group("/shipments")
		{
			shipments.GET("", shipmentHandler.GetShipments)
			shipments.GET("/:id", shipmentHandler.GetShipment)
			shipments.GET("/:id/history", shipmentHandler.GetStatusHistory)
			shipments.GET("/:id/documents", shipmentHandler.GetDocuments)
			shipments.GET("/:id/route", shipmentHandler.GetRoute)
			shipments.POST("/:id/documents", shipmentHandler.UploadDocument)

			shipments.POST("",
				middleware.Authorize(models.RoleAdmin, models.RoleGenerator, models.RoleTransporter, models.RoleDriver),
				shipmentHandler.CreateShipment)
			shipments.POST("/:id/status",
				middleware.Authorize(models.RoleAdmin, models.RoleTransporter, models.RoleRecycler),
				shipmentHandler.UpdateStatus)
			shipments.POST("/:id/approval",
				middleware.Authorize(models.RoleGenerator, models.RoleRecycler),
				shipmentHandler.DecideApproval)
		}
	}

	return router
}

// health reports database reachability and the number of change-feed
// subscribers on this instance.
func health(ping Pinger, hub *socket.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		clients := 0
		if hub != nil {
			clients = hub.Count()
		}
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error(), "websocketClients": clients})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "websocketClients": clients})
	}
}
