package app

import (
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/seat-booking-backend/internal/api"
	"github.com/nekogravitycat/seat-booking-backend/internal/auth"
	"github.com/nekogravitycat/seat-booking-backend/internal/booking"
	"github.com/nekogravitycat/seat-booking-backend/internal/config"
	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/events"
	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/ratelimit"
	"github.com/nekogravitycat/seat-booking-backend/internal/resource"
	"github.com/nekogravitycat/seat-booking-backend/internal/slot"
	"github.com/nekogravitycat/seat-booking-backend/internal/user"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	DBPool       *pgxpool.Pool
	JWTSecret    string
	JWTTTL       time.Duration
	BcryptCost   int

	Reservation config.ReservationConfig
	Redis       config.RedisConfig
	RateLimit   config.RateLimitConfig
	AMQPURL     string

	Logger *slog.Logger
}

// FromConfig maps the loaded process configuration onto the container settings.
func FromConfig(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) Config {
	return Config{
		IsProduction: cfg.IsProduction,
		ProdOrigins:  cfg.ProdOrigins,
		DBPool:       pool,
		JWTSecret:    cfg.JWTSecret,
		JWTTTL:       cfg.JWTAccessTokenTTL,
		BcryptCost:   cfg.BcryptCost,
		Reservation:  cfg.Reservation,
		Redis:        cfg.Redis,
		RateLimit:    cfg.RateLimit,
		AMQPURL:      cfg.AMQPURL,
		Logger:       log,
	}
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager

	closers []io.Closer
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) (*Container, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Container{}

	// Init Components
	passwordHasher := auth.NewBcryptPasswordHasherWithCost(cfg.BcryptCost)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	// User Module
	userRepo := user.NewPgxRepository(cfg.DBPool)
	userService := user.NewService(userRepo, passwordHasher, cfg.Logger)

	// Resource Module
	resRepo := resource.NewPgxRepository(cfg.DBPool)
	resService := resource.NewService(resRepo)

	// Slot Module
	slotRepo := slot.NewPgxRepository(cfg.DBPool)
	slotService := slot.NewService(slotRepo, resService)

	// Booking events
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, p)
		publisher = p
		cfg.Logger.Info("booking events enabled")
	}

	// Booking Module
	bookingRepo := booking.NewPgxRepository(cfg.DBPool, cfg.Reservation.LockTimeout)
	bookingService := booking.NewService(bookingRepo, booking.Options{
		ReleaseSeatOnCancel: cfg.Reservation.ReleaseSeatOnCancel,
		Publisher:           publisher,
		Logger:              cfg.Logger,
	})

	// Reservation rate limit
	var limiter *ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, rdb)
		limiter = ratelimit.New(ratelimit.Config{
			Capacity:       cfg.RateLimit.Capacity,
			RefillInterval: cfg.RateLimit.RefillInterval,
			TTL:            cfg.RateLimit.TTL,
			Prefix:         cfg.RateLimit.Prefix,
		}, rdb)
	}

	// API Router Config
	routerParams := api.Config{
		IsProduction:    cfg.IsProduction,
		ProdOrigins:     cfg.ProdOrigins,
		UserService:     userService,
		ResourceService: resService,
		SlotService:     slotService,
		BookingService:  bookingService,
		JWTManager:      jwtManager,
		ReserveLimiter:  limiter,
		Logger:          cfg.Logger,
	}

	c.Router = api.NewRouter(routerParams)
	c.JWTManager = jwtManager
	return c, nil
}

// Close releases the external connections opened by NewContainer.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}
