package kiosk

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"campusattend/internal/metrics"
)

// NewRouter exposes station health and metrics for the device supervisor.
func NewRouter(st *Station, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))

	r.GET("/healthz", func(c *gin.Context) {
		status, at, ok := st.Status()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "waiting", "session_id": st.sessionID})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"session_id":    st.sessionID,
			"session":       status.Status,
			"phase":         status.Status.Phase(),
			"can_check_in":  status.CanCheckIn,
			"polled_at":     at.UTC(),
			"check_ins":     st.Counts(),
			"present_count": status.Statistics.Present,
		})
	})

	return r
}
