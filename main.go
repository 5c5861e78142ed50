package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fixmycity-be/auth"
	"fixmycity-be/classifier"
	"fixmycity-be/config"
	"fixmycity-be/controllers"
	"fixmycity-be/database"
	"fixmycity-be/metrics"
	"fixmycity-be/middlewares"
	"fixmycity-be/routes"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found")
	}
	cfg := config.Load()
	log.SetLevelFromString(cfg.LogLevel)

	db, err := config.ConnectDB(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	log.Info("MongoDB connection established")

	redisClient, err := config.ConnectRedis(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	if redisClient == nil {
		log.Warn("Redis not configured, issue rate limiting disabled")
	}

	provider := auth.NewProvider(cfg.AuthJWTSecret, cfg.AuthBaseURL, cfg.AuthServiceKey)
	profiles := database.NewProfileService(db)
	issues := database.NewIssueService(db)

	gemini := classifier.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL)
	issueClassifier := classifier.New(gemini)

	ctrl := controllers.NewIssueController(issues, issueClassifier)
	authenticate := middlewares.Authenticate(provider, profiles)
	rateLimit := middlewares.IssueRateLimiter(redisClient, cfg.IssueRateLimit)

	metrics.Register()

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.CustomRecovery(internalErrorHandler))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.IssueRoutes(r, ctrl, authenticate, rateLimit)

	addr := ":" + cfg.Port
	log.WithField("addr", addr).Info("Starting the issue service")
	if err := r.Run(addr); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}

// internalErrorHandler is the generic top-level error handler. The panic
// message is only exposed outside release mode.
func internalErrorHandler(c *gin.Context, recovered interface{}) {
	resp := gin.H{"error": "Internal Server Error"}
	if gin.Mode() != gin.ReleaseMode && recovered != nil {
		resp["message"] = fmt.Sprint(recovered)
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
}
