package server

import (
	"time"

	"cleanproof/backend/server/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	EndPointHealth           = "/health"
	EndPointMetrics          = "/metrics"
	EndPointSessions         = "/sessions"
	EndPointCleanupReports   = "/reports/cleanup"
	EndPointMyCleanupReports = "/reports/cleanup/mine"
	EndPointDirtyReports     = "/reports/dirty"
	EndPointPoints           = "/points"
	EndPointLeaderboard      = "/leaderboard"
	EndPointGuardians        = "/guardians"
	EndPointGuardian         = "/guardians/:location_id"
	EndPointLocations        = "/locations"
)

// NewRouter wires the handlers. auth must set "user_id" on the context;
// limit guards the submission endpoints.
func NewRouter(h *Handlers, auth, limit gin.HandlerFunc) *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(middleware.Metrics())

	router.GET(EndPointHealth, h.HealthCheck)
	router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET(EndPointLocations, h.GetLocations)

		authed := v1.Group("", auth)
		authed.POST(EndPointSessions, limit, h.OpenSession)
		authed.POST(EndPointCleanupReports, limit, h.SubmitCleanup)
		authed.POST(EndPointDirtyReports, limit, h.SubmitDirty)
		authed.GET(EndPointMyCleanupReports, h.MyCleanupReports)
		authed.GET(EndPointPoints, h.GetPoints)
		authed.GET(EndPointLeaderboard, h.GetLeaderboard)
		authed.POST(EndPointGuardians, h.Subscribe)
		authed.DELETE(EndPointGuardian, h.Unsubscribe)
	}

	return router
}
