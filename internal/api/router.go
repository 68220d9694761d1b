package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"parking_network/internal/api/handler"
	"parking_network/internal/api/middleware"
	"parking_network/internal/domain"
	"parking_network/internal/metrics"
	"parking_network/internal/service"
)

func SetupRouter(
	inventory *service.InventoryService,
	bookings *service.BookingService,
	queries *service.QueryService,
	authMw *middleware.AuthMiddleware,
	rateLimitPerMin int,
	log *zap.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	admin := authMw.AuthorizeRole(domain.ActorAdmin)
	staff := authMw.AuthorizeRole(domain.ActorAdmin, domain.ActorManager)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(rateLimitPerMin, log))
	v1.Use(authMw.Authenticate())
	{
		cityH := handler.NewCityHandler(inventory)
		cityRoutes := v1.Group("/cities")
		{
			cityRoutes.GET("", cityH.ListCities)
			cityRoutes.POST("", admin, cityH.CreateCity)
			cityRoutes.GET("/:city", cityH.GetCity)
			cityRoutes.DELETE("/:city", admin, cityH.DeleteCity)

			stationH := handler.NewStationHandler(inventory)
			cityRoutes.POST("/:city/stations", admin, stationH.AddStation)

			stationRoutes := cityRoutes.Group("/:city/stations/:station")
			stationRoutes.Use(staff)
			{
				stationRoutes.DELETE("", admin, stationH.RemoveStation)

				stationRoutes.POST("/slots", admin, stationH.AddSlot)
				stationRoutes.PUT("/slots/:slot", admin, stationH.UpdateSlotPrice)
				stationRoutes.DELETE("/slots/:slot", admin, stationH.RemoveSlot)

				stationRoutes.POST("/employees", stationH.AddEmployee)
				stationRoutes.DELETE("/employees", stationH.RemoveEmployeesByName)
				stationRoutes.PUT("/employees/role", stationH.UpdateEmployeeRoleByName)
				stationRoutes.PUT("/employees/:employee/role", stationH.UpdateEmployeeRole)
				stationRoutes.DELETE("/employees/:employee", stationH.RemoveEmployee)
			}
		}

		bookingH := handler.NewBookingHandler(bookings)
		bookingRoutes := v1.Group("/bookings")
		{
			bookingRoutes.POST("", bookingH.CreateBooking)
			bookingRoutes.GET("", bookingH.FindBookings)
			bookingRoutes.GET("/:id", bookingH.GetBooking)
			bookingRoutes.POST("/:id/approve", staff, bookingH.Approve())
			bookingRoutes.POST("/:id/check-in", staff, bookingH.CheckIn())
			bookingRoutes.POST("/:id/check-out", staff, bookingH.CheckOut())
			bookingRoutes.POST("/:id/mark-paid", staff, bookingH.MarkPaid())
		}

		queryH := handler.NewQueryHandler(queries)
		v1.GET("/stations/:station/queue", staff, queryH.StationQueue)
		v1.GET("/manager/queue", authMw.AuthorizeRole(domain.ActorManager), queryH.ManagerQueue)

		userRoutes := v1.Group("/users/:username")
		{
			userRoutes.GET("/history", queryH.TicketHistory)
			userRoutes.GET("/history.pdf", queryH.TicketHistoryPDF)
			userRoutes.POST("/history/archive", queryH.ArchiveTicketHistory)
		}
	}
	return r
}
