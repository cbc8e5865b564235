package routes

import (
	"net/http"
	"time"

	"fleetrent/handlers"
	"fleetrent/middleware"
	"fleetrent/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterWebhookRoutes registers the gateway delivery endpoint. It sits outside the rate
// limiter and JWT auth: the gateway authenticates by signature.
func RegisterWebhookRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	hooks := r.Group("/webhooks")
	{
		hooks.POST("/direct-debit", hb.DirectDebitWebhookHandler)
		hooks.GET("/direct-debit/health", hb.WebhookHealthHandler)
	}
}

// RegisterBookingRoutes sets up the booking lifecycle endpoints.
func RegisterBookingRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	staffOnly := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleStaff)

	bookings := api.Group("/bookings")
	{
		bookings.POST("", hb.CreateBookingHandler)
		bookings.GET("", hb.ListBookingsHandler)
		bookings.GET("/:id", hb.GetBookingHandler)
		bookings.POST("/:id/cancel", hb.CancelBookingHandler)
		bookings.GET("/:id/payments", hb.ListBookingPaymentsHandler)

		bookings.POST("/:id/confirm", staffOnly, hb.ConfirmBookingHandler)
		bookings.POST("/:id/pickup", staffOnly, hb.PickupBookingHandler)
		bookings.POST("/:id/return", staffOnly, hb.ReturnBookingHandler)
		bookings.POST("/:id/no-show", staffOnly, hb.NoShowBookingHandler)
		bookings.POST("/:id/direct-debit", staffOnly, hb.CreateScheduleHandler)
	}
}

// RegisterPaymentRoutes sets up refund and direct-debit schedule administration.
func RegisterPaymentRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	staff := api.Group("", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleStaff))
	{
		staff.POST("/payments/:id/refund", hb.RefundPaymentHandler)
		staff.GET("/direct-debit/schedules/:scheduleID", hb.GetScheduleStatusHandler)
		staff.DELETE("/direct-debit/schedules/:scheduleID", hb.CancelScheduleHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "dependencies": utils.GetHealthStatus()})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, requestsPerMinute int) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterWebhookRoutes(r, hb)

	api := r.Group("/api", middleware.RateLimitMiddleware(requestsPerMinute), middleware.JWTAuthMiddleware())
	RegisterBookingRoutes(api, hb)
	RegisterPaymentRoutes(api, hb)
}
