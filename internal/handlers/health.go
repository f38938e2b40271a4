package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/treehole/backend/internal/cache"
	"github.com/treehole/backend/internal/database"
)

// Health reports liveness plus the state of each backing store. It returns
// 503 when the relational database is unreachable; Redis is optional and
// only reported.
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}

	if sqlDB, err := database.DB.DB(); err != nil {
		checks["database"] = "error"
		status = http.StatusServiceUnavailable
	} else if err := sqlDB.Ping(); err != nil {
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if rc := cache.Get(); rc != nil {
		if err := rc.Raw().Ping(c.Request.Context()).Err(); err != nil {
			checks["redis"] = "down"
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "disabled"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
