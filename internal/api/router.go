package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/api/handlers"
	"github.com/Gopi7989/agri-connect/internal/api/middleware"
	"github.com/Gopi7989/agri-connect/internal/apperr"
	"github.com/Gopi7989/agri-connect/internal/auth"
	"github.com/Gopi7989/agri-connect/internal/config"
	"github.com/Gopi7989/agri-connect/internal/logger"
	"github.com/Gopi7989/agri-connect/internal/metrics"
	"github.com/Gopi7989/agri-connect/internal/notify"
	"github.com/Gopi7989/agri-connect/internal/services"
)

// Dependencies are the services the public router dispatches to.
type Dependencies struct {
	Users       services.IUserService
	Listings    services.IListingService
	Inquiries   services.IInquiryService
	Stats       services.IStatsService
	Tokens      *auth.TokenService
	RateLimiter *middleware.RateLimiterMiddleware
	// Checks back GET /healthz. An empty map always reports ok.
	Checks map[string]handlers.Pinger
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	handlers.RegisterValidators()

	r := gin.New()

	// Apply global middleware first (order matters)
	r.Use(gin.CustomRecovery(recoverInternal))
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigin))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Limit())
	}

	healthHandler := handlers.NewHealthHandler(deps.Checks)
	userHandler := handlers.NewRestUserHandler(deps.Users)
	listingHandler := handlers.NewRestListingHandler(deps.Listings)
	inquiryHandler := handlers.NewRestInquiryHandler(deps.Inquiries)
	statsHandler := handlers.NewRestStatsHandler(deps.Stats)

	requireAuth := middleware.AuthMiddleware(deps.Tokens, deps.Users)

	r.GET("/", healthHandler.Root)
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiGroup := r.Group("/api")

	users := apiGroup.Group("/users")
	{
		users.POST("/register", userHandler.Register)
		users.POST("/login", userHandler.Login)
		users.GET("/profile", requireAuth, userHandler.Profile)
		users.PUT("/password", requireAuth, userHandler.ChangePassword)
	}

	listings := apiGroup.Group("/listings")
	{
		listings.GET("", listingHandler.ListListings)
		listings.GET("/:id", listingHandler.GetListingByID)
		listings.POST("", requireAuth, middleware.RequireCapability(auth.CapCreateListing), listingHandler.CreateListing)
	}

	inquiries := apiGroup.Group("/inquiries", requireAuth)
	{
		inquiries.POST("", middleware.RequireCapability(auth.CapSendInquiry), inquiryHandler.SendInquiry)
		inquiries.GET("/my-inquiries", inquiryHandler.MyInquiries)
		inquiries.PATCH("/:id/status", middleware.RequireCapability(auth.CapDecideInquiry), inquiryHandler.DecideInquiry)
		inquiries.PATCH("/:id/read", middleware.RequireCapability(auth.CapDecideInquiry), inquiryHandler.MarkRead)
	}

	stats := apiGroup.Group("/stats")
	{
		stats.GET("", statsHandler.Summary)
		stats.GET("/districts", statsHandler.Districts)
	}

	return r
}

func recoverInternal(c *gin.Context, recovered any) {
	logger.Error("Recovered from panic",
		zap.Any("panic", recovered),
		zap.String("path", c.Request.URL.Path),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, apperr.Internal(errors.New("internal error")).Body())
}

const (
	testNotificationPolls    = 10
	testNotificationInterval = 200 * time.Millisecond
)

// SetupServiceRouter configures the internal service API. It is bound to a
// separate port and is not exposed publicly.
func SetupServiceRouter(cfg *config.Config, rdb redis.Cmdable, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(recoverInternal), middleware.RequestLogger())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			logger.Info("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				logger.Warn("Shutdown already signaled")
			}

		case "getTestNotification":
			if !cfg.MockServices || rdb == nil {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Mock notifications are disabled"})
				return
			}
			var args []string // ["mobileNumber"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 1 || args[0] == "" {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [mobileNumber]"})
				return
			}
			msg, err := pollTestNotification(c.Request.Context(), rdb, args[0])
			if err != nil {
				logger.Error("Service API: reading mock notification", zap.String("to", args[0]), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
				return
			}
			if msg == nil {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test notification not found for key %s", notify.MockKey(args[0]))})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": msg})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// pollTestNotification waits briefly for the worker to deliver, then consumes the message.
func pollTestNotification(ctx context.Context, rdb redis.Cmdable, to string) (*notify.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for i := 0; i < testNotificationPolls; i++ {
		msg, err := notify.ReadMock(ctx, rdb, to)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			rdb.Del(ctx, notify.MockKey(to))
			return msg, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(testNotificationInterval):
		}
	}
	return nil, nil
}
