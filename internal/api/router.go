package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nekogravitycat/seat-booking-backend/internal/auth"
	"github.com/nekogravitycat/seat-booking-backend/internal/booking"
	bookingHttp "github.com/nekogravitycat/seat-booking-backend/internal/booking/http"
	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/ratelimit"
	"github.com/nekogravitycat/seat-booking-backend/internal/resource"
	resourceHttp "github.com/nekogravitycat/seat-booking-backend/internal/resource/http"
	"github.com/nekogravitycat/seat-booking-backend/internal/slot"
	slotHttp "github.com/nekogravitycat/seat-booking-backend/internal/slot/http"
	"github.com/nekogravitycat/seat-booking-backend/internal/user"
	userHttp "github.com/nekogravitycat/seat-booking-backend/internal/user/http"
)

// Config carries the services and settings the router is assembled from.
type Config struct {
	IsProduction bool
	ProdOrigins  string

	UserService     user.Service
	ResourceService resource.Service
	SlotService     slot.Service
	BookingService  booking.Service
	JWTManager      *auth.JWTManager

	// ReserveLimiter throttles POST /bookings. Nil disables it.
	ReserveLimiter *ratelimit.Limiter
	Logger         *slog.Logger
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global Middleware:
	// - Logger: Logs request information to the console.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	// - RequestID: Tags every request and response with X-Request-ID.
	r.Use(gin.Logger(), gin.Recovery(), RequestID())

	r.Use(cors.New(corsConfig(cfg)))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// sysAdminMiddleware: Further checks if the authenticated user has System Admin privileges.
	sysAdminMiddleware := RequireSystemAdmin(cfg.UserService)

	userHandler := userHttp.NewHandler(cfg.UserService, cfg.JWTManager)
	resourceHandler := resourceHttp.NewHandler(cfg.ResourceService)
	slotHandler := slotHttp.NewHandler(cfg.SlotService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService, cfg.UserService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		userHttp.RegisterRoutes(v1, userHandler, authMiddleware)
		resourceHttp.RegisterRoutes(v1, resourceHandler, authMiddleware, sysAdminMiddleware)
		slotHttp.RegisterRoutes(v1, slotHandler, authMiddleware, sysAdminMiddleware)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware, sysAdminMiddleware, cfg.ReserveLimiter.Middleware())
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("router initialized",
			slog.Bool("production", cfg.IsProduction),
			slog.Bool("rate_limited", cfg.ReserveLimiter != nil),
		)
	}

	return r
}

// corsConfig allows the local Swagger UI in development and PROD_ORIGINS in production.
func corsConfig(cfg Config) cors.Config {
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{
		"http://localhost:8081", // Swagger
	}
	if origins := splitOrigins(cfg.ProdOrigins); cfg.IsProduction && len(origins) > 0 {
		config.AllowOrigins = origins
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	config.ExposeHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	return config
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
