// README: HTTP router registration.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"freightbid/internal/http/handlers"
	"freightbid/internal/http/middleware"
	"freightbid/internal/identity"
	"freightbid/internal/modules/bid"
	"freightbid/internal/modules/booking"
)

// RouterDeps carries everything the route table needs.
type RouterDeps struct {
	Bookings    *booking.Service
	Bids        *bid.Service
	Resolver    identity.Resolver
	Log         logrus.FieldLogger
	CORSOrigins []string
	// BidRate is a limiter rate such as "30-M"; empty disables the bid limiter.
	BidRate    string
	LimitStore limiter.Store
	// Health reports storage reachability; nil means always healthy.
	Health func(ctx context.Context) error
}

func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth(deps.Resolver))

	bookingHandler := handlers.NewBookingHandler(deps.Bookings)
	api.POST("/bookings", bookingHandler.Create)
	api.GET("/bookings", bookingHandler.List)
	api.GET("/bookings/:id", bookingHandler.Get)
	api.PATCH("/bookings/:id", bookingHandler.Update)
	api.POST("/bookings/:id/publish", bookingHandler.Publish)
	api.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	api.POST("/bookings/:id/pickup", bookingHandler.Pickup)
	api.POST("/bookings/:id/complete", bookingHandler.Complete)

	bidHandler := handlers.NewBidHandler(deps.Bids)
	submit := []gin.HandlerFunc{bidHandler.Submit}
	if deps.BidRate != "" {
		store := deps.LimitStore
		if store == nil {
			var err error
			if store, err = middleware.NewLimiterStore(nil, "freight:bids"); err != nil {
				return nil, err
			}
		}
		limit, err := middleware.RateLimit(deps.BidRate, store)
		if err != nil {
			return nil, err
		}
		submit = append([]gin.HandlerFunc{limit}, submit...)
	}
	api.GET("/bookings/:id/bids", bidHandler.ListForBooking)
	api.POST("/bookings/:id/bids", submit...)
	api.GET("/bids", bidHandler.ListMine)
	api.GET("/bids/:id", bidHandler.Get)
	api.POST("/bids/:id/accept", bidHandler.Accept)
	api.POST("/bids/:id/withdraw", bidHandler.Withdraw)
	api.GET("/bids/:id/charge", bidHandler.Charge)

	return r, nil
}
