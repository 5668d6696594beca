package handlers

import (
	_ "alert_console/docs"
	"alert_console/internal/logger"
	"alert_console/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	validate *validator.Validate
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log, validate: validator.New()}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Session stream; the token may come as ?token= since browsers cannot set headers on upgrade.
	router.GET("/ws", h.userIdMiddleware, h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		api.POST("/evaluate", h.evaluate)
		api.POST("/emergencies", h.postEmergency)
		api.POST("/simulations", h.startSimulation)
		h.registerAlertRoutes(api)
		h.registerPreferenceRoutes(api)
		h.registerDeviceRoutes(api)
	}
}

func (h *Handler) registerAlertRoutes(api *gin.RouterGroup) {
	alerts := api.Group("/alerts")
	{
		alerts.GET("", h.getAlerts)
	}
}

func (h *Handler) registerPreferenceRoutes(api *gin.RouterGroup) {
	prefs := api.Group("/preferences")
	{
		prefs.GET("", h.getPreferences)
		prefs.PUT("", h.putPreferences)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	devices := api.Group("/devices/:id")
	{
		// :id is the serial number for device traffic
		devices.POST("/readings", h.postReading)
		devices.POST("/alarms", h.postAlarm)

		devices.GET("/controls", h.getControls)
		devices.PUT("/controls", h.putControls)
		devices.POST("/power", h.togglePower)
		devices.GET("/door", h.doorStatus)
		devices.POST("/door", h.toggleDoor)
		devices.POST("/lock", h.lockDoor)
		devices.POST("/unlock", h.unlockDoor)

		devices.POST("/share", h.shareDevice)
		devices.GET("/shared-users", h.sharedUsers)
		devices.DELETE("/shared-users/:user", h.removeSharedUser)

		devices.GET("/links", h.listLinks)
		devices.POST("/links", h.createLink)
		devices.DELETE("/links/:link", h.deleteLink)
	}
}
