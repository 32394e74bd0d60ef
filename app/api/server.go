package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger("/health"), gin.Recovery(), cors())

	setupRoutes(r, handler, apiAccessKey)

	return r
}

// requestLogger writes one slog line per request, skipping the given paths.
func requestLogger(skip ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if slices.Contains(skip, c.Request.URL.Path) {
			return
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			attrs = append(attrs, "error", errs)
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			slog.Error("HTTP request", attrs...)
		case c.Writer.Status() >= http.StatusBadRequest:
			slog.Warn("HTTP request", attrs...)
		default:
			slog.Debug("HTTP request", attrs...)
		}
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	// Output feeds of analyzed articles
	r.GET("/feeds/:name", handler.GetFeed)

	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	// API endpoints are only served with an access key configured
	if apiAccessKey != "" {
		api := r.Group("/api", authMiddleware(apiAccessKey))

		sources := api.Group("/sources")
		sources.GET("", handler.APIListSources)
		sources.GET("/:name", handler.APIGetSource)
		sources.GET("/:name/runs", handler.APIListRuns)
		sources.POST("/:name/collect", handler.APICollectSource)
		sources.POST("/:name/reload", handler.APIReloadSource)

		api.GET("/articles", handler.APIListArticles)
		api.GET("/articles/:id", handler.APIGetArticle)
		api.POST("/process", handler.APIProcess)
		api.GET("/tasks", handler.APIListTasks)

		duplicates := api.Group("/duplicates")
		duplicates.GET("", handler.APIListDuplicates)
		duplicates.GET("/:id", handler.APIGetDuplicate)
		duplicates.POST("/:id/resolve", handler.APIResolveDuplicate)
		duplicates.POST("/sweep", handler.APISweepDuplicates)

		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Info("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	endpoints := routeIndex(r)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "News Comb",
			"version":     handler.version,
			"description": "News collection with deduplication, rule-based cleaning and text analysis",
			"endpoints":   endpoints,
			"api": gin.H{
				"enabled": apiAccessKey != "",
				"auth":    "X-API-Key header or Authorization: Bearer <key>",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// routeIndex lists the registered routes as "METHOD path", sorted.
func routeIndex(r *gin.Engine) []string {
	routes := r.Routes()
	index := make([]string, 0, len(routes))
	for _, route := range routes {
		index = append(index, route.Method+" "+route.Path)
	}
	slices.Sort(index)
	return index
}

// authMiddleware accepts the key in X-API-Key or as a bearer token
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	expected := []byte(apiAccessKey)

	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")
		if bearer, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && providedKey == "" {
			providedKey = bearer
		}

		switch {
		case providedKey == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
		case subtle.ConstantTimeCompare([]byte(providedKey), expected) != 1:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
		default:
			c.Next()
		}
	}
}
