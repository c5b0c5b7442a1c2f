package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staybook/internal/infra/config"
	"staybook/internal/infra/obs"
)

type Handlers struct {
	Bookings     BookingHandler
	Listings     ListingHandler
	Availability AvailabilityHandler
	Pricing      PricingHandler
	Calendars    CalendarHandler
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter wires middleware and routes. Every API route expects the actor
// headers set by the gateway except the public listing reads and the feed
// export.
func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", userIDHeader, userRoleHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"Location",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	router.Use(ActorMiddleware())

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")

	api.POST("/listings", h.Listings.Create)
	api.GET("/listings/:id", h.Listings.Get)
	api.PUT("/listings/:id", h.Listings.Update)
	api.POST("/listings/:id/activate", h.Listings.Activate)
	api.POST("/listings/:id/deactivate", h.Listings.Deactivate)
	api.PUT("/listings/:id/overrides", h.Listings.ReplaceOverrides)
	api.GET("/host/listings", h.Listings.ListHost)

	api.POST("/bookings", h.Bookings.Create)
	api.GET("/bookings", h.Bookings.List)
	api.GET("/bookings/:id", h.Bookings.Get)
	api.POST("/bookings/:id/status", h.Bookings.UpdateStatus)
	api.POST("/bookings/:id/cancel", h.Bookings.Cancel)
	api.POST("/listings/:id/bookings", h.Bookings.Create)
	api.GET("/listings/:id/availability", h.Bookings.Availability)
	api.GET("/listings/:id/quote", h.Bookings.Quote)
	api.GET("/listings/:id/occupancy", h.Availability.Occupancy)

	api.GET("/pricing/:scope", h.Pricing.Get)
	api.PUT("/pricing/:scope", h.Pricing.Upsert)
	api.GET("/pricing/:scope/:scopeID", h.Pricing.Get)
	api.PUT("/pricing/:scope/:scopeID", h.Pricing.Upsert)
	api.GET("/listings/:id/pricing", h.Pricing.Effective)

	api.GET("/listings/:id/calendars", h.Calendars.List)
	api.POST("/listings/:id/calendars", h.Calendars.Add)
	api.POST("/listings/:id/calendars/sync", h.Calendars.SyncAll)
	api.DELETE("/calendars/:calendarID", h.Calendars.Remove)
	api.POST("/calendars/:calendarID/sync", h.Calendars.Sync)
	api.GET("/listings/:id/calendar.ics", h.Calendars.Export)
	api.POST("/listings/:id/calendar/publish", h.Calendars.Publish)

	return router
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
