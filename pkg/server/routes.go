package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/smilemakc/wfkernel/internal/infrastructure/middleware"
	"github.com/smilemakc/wfkernel/internal/infrastructure/storage"
)

func (s *Server) setupRoutes() error {
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	loggingMiddleware := middleware.NewLoggingMiddleware(s.logger)
	recoveryMiddleware := middleware.NewRecoveryMiddleware(s.logger)
	bodySizeMiddleware := middleware.NewBodySizeMiddleware(s.config.Server.MaxBodySize)

	s.router.Use(recoveryMiddleware.Recovery())
	s.router.Use(loggingMiddleware.RequestLogger())
	s.router.Use(bodySizeMiddleware.LimitBodySize())
	s.router.Use(gzip.Gzip(gzip.DefaultCompression))

	if s.config.Server.CORS {
		s.setupCORS()
	}

	s.setupHealthEndpoints()
	s.setupAPIv1Routes()

	s.logger.Info("REST API routes registered")
	return nil
}

func (s *Server) setupCORS() {
	allowedOrigins := s.config.Server.CORSAllowedOrigins
	allowAll := len(allowedOrigins) == 0 && s.config.Logging.Level == "debug"

	if !allowAll && len(allowedOrigins) == 0 {
		s.logger.Warn("CORS enabled but no allowed origins configured (WFKERNEL_CORS_ALLOWED_ORIGINS); set origins or use debug log level for wildcard")
	}

	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = struct{}{}
	}

	s.router.Use(func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			if _, ok := originSet[origin]; ok {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Vary", "Origin")
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	if allowAll {
		s.logger.Info("CORS enabled with wildcard origin (debug mode)")
	} else {
		s.logger.Info("CORS enabled", "allowed_origins", allowedOrigins)
	}
}

func (s *Server) setupHealthEndpoints() {
	s.router.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := storage.Ping(ctx, s.db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  fmt.Sprintf("database: %s", err.Error()),
			})
			return
		}

		if s.redisCache != nil {
			if err := s.redisCache.Health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  fmt.Sprintf("redis: %s", err.Error()),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	s.router.GET("/readyz", func(c *gin.Context) {
		if s.snapshotStore.GetCurrent() == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "no current snapshot"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	s.router.GET("/metrics", func(c *gin.Context) {
		dbStats := storage.Stats(s.db)
		metrics := gin.H{
			"database": gin.H{
				"open_connections": dbStats.OpenConnections,
				"in_use":           dbStats.InUse,
				"idle":             dbStats.Idle,
				"max_open_conns":   dbStats.MaxOpenConnections,
			},
			"fold_table_size": s.verifier.FoldTableSize(),
		}
		if s.redisCache != nil {
			cacheStats := s.redisCache.Stats()
			metrics["redis"] = gin.H{
				"hits":        cacheStats.Hits,
				"misses":      cacheStats.Misses,
				"total_conns": cacheStats.TotalConns,
				"idle_conns":  cacheStats.IdleConns,
			}
		}
		c.JSON(http.StatusOK, gin.H{"metrics": metrics})
	})
}

func (s *Server) setupAPIv1Routes() {
	apiV1 := s.router.Group("/api/v1")
	{
		s.setupSpecRoutes(apiV1)
		s.setupSnapshotRoutes(apiV1)
		s.setupCaseRoutes(apiV1)
	}
}
