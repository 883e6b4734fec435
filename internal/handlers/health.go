package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/gin-gonic/gin"
)

const serviceName = "catalog-import-service"

// Pinger checks a backing store
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheHealth reports on the template cache
type CacheHealth interface {
	RedisHealth(ctx context.Context) error
	CacheStats() *cache.CacheStats
}

// BrokerHealth reports on the event broker connection
type BrokerHealth interface {
	IsConnected() bool
}

// HealthHandler serves liveness, readiness and the extended health report
type HealthHandler struct {
	db     Pinger
	cache  CacheHealth
	broker BrokerHealth
}

// NewHealthHandler creates a health handler. cache and broker may be nil.
func NewHealthHandler(db Pinger, cache CacheHealth, broker BrokerHealth) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, broker: broker}
}

// HealthCheck returns service health status (basic)
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
	})
}

// ReadinessCheck reports ready only when the database answers
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not_ready",
			"service": serviceName,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": serviceName,
	})
}

// ExtendedHealthCheck returns detailed health status including database, Redis and NATS
func (h *HealthHandler) ExtendedHealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	health := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"checks":  gin.H{},
	}

	checks := health["checks"].(gin.H)

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = gin.H{"status": "unhealthy", "error": err.Error()}
	} else {
		checks["database"] = gin.H{"status": "healthy"}
	}

	if h.cache != nil {
		if err := h.cache.RedisHealth(ctx); err != nil {
			checks["redis"] = gin.H{"status": "unhealthy", "error": err.Error()}
		} else {
			checks["redis"] = gin.H{"status": "healthy"}
		}

		if stats := h.cache.CacheStats(); stats != nil {
			checks["cache_stats"] = gin.H{
				"l1_hits":   stats.L1Hits,
				"l1_misses": stats.L1Misses,
				"l2_hits":   stats.L2Hits,
				"l2_misses": stats.L2Misses,
			}
		}
	}

	if h.broker != nil {
		if h.broker.IsConnected() {
			checks["nats"] = gin.H{"status": "healthy"}
		} else {
			checks["nats"] = gin.H{"status": "unhealthy", "error": "not connected"}
		}
	}

	for _, check := range checks {
		if checkMap, ok := check.(gin.H); ok {
			if status, ok := checkMap["status"]; ok && status == "unhealthy" {
				health["status"] = "degraded"
				break
			}
		}
	}

	c.JSON(http.StatusOK, health)
}
