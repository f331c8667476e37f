package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"hotel-reservation/controllers"
	"hotel-reservation/metrics"
	"hotel-reservation/middleware"
	"hotel-reservation/models"
	"hotel-reservation/ratelimit"
)

// Deps are the controllers and HTTP settings the router needs.
type Deps struct {
	Reservations *controllers.ReservationController
	Rooms        *controllers.RoomController
	CashReceipts *controllers.CashReceiptsController

	JWTSecret   string
	CorsOrigins []string
	Throttle    *ratelimit.Throttle // nil disables request throttling
}

// SetupRouter wires every route. Health and metrics stay public.
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	origins := d.CorsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.Use(middleware.Auth(d.JWTSecret))
	if d.Throttle != nil {
		api.Use(middleware.Throttle(d.Throttle))
	}
	{
		rooms := api.Group("/rooms")
		{
			rooms.GET("", d.Rooms.List)
			rooms.GET("/:id", d.Rooms.Get)
		}

		rc := d.Reservations
		reservations := api.Group("/reservations", middleware.RequireRole(models.RoleCustomer, models.RoleAdmin))
		{
			reservations.POST("", middleware.RequireRole(models.RoleCustomer), rc.Create)
			reservations.GET("", rc.Mine)
			reservations.GET("/cancel-quota", rc.CancelQuota)
			reservations.GET("/:id", rc.Get)
			reservations.PUT("/:id", rc.Edit)
			reservations.DELETE("/:id", rc.Hide)
			reservations.POST("/:id/cancel", rc.Cancel)
			reservations.POST("/:id/undo-cancel", rc.UndoCancel())
			reservations.POST("/:id/rate", rc.Rate)
		}

		admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		{
			ar := admin.Group("/reservations")
			{
				ar.GET("", rc.ListAll)
				ar.PUT("/:id", rc.Edit)
				ar.DELETE("/:id", rc.Delete)
				ar.POST("/:id/check-in", rc.CheckIn())
				ar.POST("/:id/undo-check-in", rc.UndoCheckIn())
				ar.POST("/:id/complete", rc.Complete())
				ar.POST("/:id/undo-complete", rc.UndoComplete())
			}

			rooms := admin.Group("/rooms")
			{
				rooms.POST("", d.Rooms.Create)
				rooms.PUT("/:id", d.Rooms.Update)
				rooms.PATCH("/:id", d.Rooms.Update)
				rooms.DELETE("/:id", d.Rooms.Delete)
				rooms.POST("/:id/maintenance", d.Rooms.Maintenance)
				rooms.POST("/:id/available", d.Rooms.Available)
			}

			cash := admin.Group("/cash-receipts")
			{
				cash.GET("", d.CashReceipts.Summary)
				cash.POST("/bulk", d.CashReceipts.Bulk)
				cash.POST("/:id/receive", d.CashReceipts.Receive)
			}
		}
	}

	return r
}
