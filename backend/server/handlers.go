package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"cleanproof/backend/consensus"
	"cleanproof/backend/ledger"
	"cleanproof/backend/model"
	"cleanproof/backend/server/api"
	"cleanproof/backend/session"
	"cleanproof/backend/trust"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	defaultHistoryLimit     = 20
	maxHistoryLimit         = 200
)

type Sessions interface {
	Open(ctx context.Context, req session.OpenRequest) (*model.PendingSession, error)
	Consume(ctx context.Context, id, owner string) (*model.PendingSession, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, s *model.PendingSession, after trust.AfterClaim) (*trust.Result, error)
}

type Counter interface {
	Report(ctx context.Context, claim consensus.DirtyClaim) (*consensus.Progress, error)
}

type Points interface {
	TotalFor(ctx context.Context, owner string) (int, error)
	MonthlyTotalFor(ctx context.Context, owner, month string) (int, error)
	Leaderboard(ctx context.Context, month string, limit int, me string) (*ledger.Leaderboard, error)
}

// Store is what the read endpoints and guardian management need directly.
type Store interface {
	Ping(ctx context.Context) error
	CleanupReportsByOwner(ctx context.Context, owner string, limit int) ([]model.CleanupReport, error)
	Subscribe(ctx context.Context, g model.GuardianSubscription) error
	Unsubscribe(ctx context.Context, userID string, locationID int64) (bool, error)
	LocationsInBounds(ctx context.Context, latMin, lonMin, latMax, lonMax float64, limit int) ([]model.Location, error)
}

type Handlers struct {
	sessions  Sessions
	evaluator Evaluator
	counter   Counter
	points    Points
	store     Store
	now       func() time.Time
}

func NewHandlers(sessions Sessions, evaluator Evaluator, counter Counter, points Points, store Store) *Handlers {
	return &Handlers{
		sessions:  sessions,
		evaluator: evaluator,
		counter:   counter,
		points:    points,
		store:     store,
		now:       time.Now,
	}
}

func userID(c *gin.Context) string {
	return c.GetString("user_id")
}

func queryInt(c *gin.Context, key string, def, max int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, model.InvalidArgument("%s must be a positive integer", key)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// HealthCheck reports whether the database is reachable.
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		log.Errorf("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "service": "cleanproof"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "cleanproof"})
}

func (h *Handlers) OpenSession(c *gin.Context) {
	var args api.OpenSessionArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, EndPointSessions, err)
		return
	}

	at, err := requiredCoordinates(args.Latitude, args.Longitude)
	if err != nil {
		respondError(c, EndPointSessions, err)
		return
	}

	s, err := h.sessions.Open(c.Request.Context(), session.OpenRequest{
		Owner:       userID(c),
		LocationID:  args.LocationID,
		EvidenceRef: args.EvidenceRef,
		Fingerprint: args.Fingerprint,
		Fix:         model.Fix{Coordinates: *at, Accuracy: args.Accuracy},
	})
	if err != nil {
		respondError(c, EndPointSessions, err)
		return
	}

	c.JSON(http.StatusCreated, api.OpenSessionResp{
		SessionID:  s.ID,
		LocationID: s.LocationID,
		CreatedAt:  s.CreatedAt,
	})
}

// SubmitCleanup consumes the session before evaluating, so a rejected claim
// cannot be retried against the same session.
func (h *Handlers) SubmitCleanup(c *gin.Context) {
	var args api.CleanupArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, EndPointCleanupReports, err)
		return
	}
	at, err := requiredCoordinates(args.Latitude, args.Longitude)
	if err != nil {
		respondError(c, EndPointCleanupReports, err)
		return
	}
	ctx := c.Request.Context()

	s, err := h.sessions.Consume(ctx, args.SessionID, userID(c))
	if err != nil {
		respondError(c, EndPointCleanupReports, err)
		return
	}

	res, err := h.evaluator.Evaluate(ctx, s, trust.AfterClaim{
		EvidenceRef: args.EvidenceRef,
		Fingerprint: args.Fingerprint,
		Fix:         model.Fix{Coordinates: *at, Accuracy: args.Accuracy},
	})
	if err != nil {
		respondError(c, EndPointCleanupReports, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handlers) SubmitDirty(c *gin.Context) {
	var args api.DirtyArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, EndPointDirtyReports, err)
		return
	}

	at, err := optionalCoordinates(args.Latitude, args.Longitude)
	if err != nil {
		respondError(c, EndPointDirtyReports, err)
		return
	}

	p, err := h.counter.Report(c.Request.Context(), consensus.DirtyClaim{
		Owner:       userID(c),
		LocationID:  args.LocationID,
		Coordinates: at,
		EvidenceRef: args.EvidenceRef,
		Fingerprint: args.Fingerprint,
	})
	if err != nil {
		respondError(c, EndPointDirtyReports, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// MyCleanupReports lets a client find out what happened to a claim whose
// response it never received.
func (h *Handlers) MyCleanupReports(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		respondError(c, EndPointMyCleanupReports, err)
		return
	}
	reports, err := h.store.CleanupReportsByOwner(c.Request.Context(), userID(c), limit)
	if err != nil {
		respondError(c, EndPointMyCleanupReports, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": reports})
}

func (h *Handlers) GetPoints(c *gin.Context) {
	month := c.DefaultQuery("month", ledger.MonthKey(h.now()))
	ctx := c.Request.Context()

	monthly, err := h.points.MonthlyTotalFor(ctx, userID(c), month)
	if err != nil {
		respondError(c, EndPointPoints, err)
		return
	}
	lifetime, err := h.points.TotalFor(ctx, userID(c))
	if err != nil {
		respondError(c, EndPointPoints, err)
		return
	}

	c.JSON(http.StatusOK, api.PointsResp{Month: month, Monthly: monthly, Lifetime: lifetime})
}

func (h *Handlers) GetLeaderboard(c *gin.Context) {
	month := c.DefaultQuery("month", ledger.MonthKey(h.now()))
	limit, err := queryInt(c, "limit", defaultLeaderboardLimit, maxLeaderboardLimit)
	if err != nil {
		respondError(c, EndPointLeaderboard, err)
		return
	}

	board, err := h.points.Leaderboard(c.Request.Context(), month, limit, userID(c))
	if err != nil {
		respondError(c, EndPointLeaderboard, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *Handlers) Subscribe(c *gin.Context) {
	var args api.GuardianArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, EndPointGuardians, err)
		return
	}

	err := h.store.Subscribe(c.Request.Context(), model.GuardianSubscription{
		UserID:      userID(c),
		LocationID:  args.LocationID,
		DeviceToken: args.DeviceToken,
	})
	if err != nil {
		respondError(c, EndPointGuardians, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "subscribed"})
}

func (h *Handlers) Unsubscribe(c *gin.Context) {
	locationID, err := strconv.ParseInt(c.Param("location_id"), 10, 64)
	if err != nil {
		badRequest(c, EndPointGuardian, err)
		return
	}

	removed, err := h.store.Unsubscribe(c.Request.Context(), userID(c), locationID)
	if err != nil {
		respondError(c, EndPointGuardian, err)
		return
	}
	if !removed {
		respondError(c, EndPointGuardian, model.NotFound("subscription", c.Param("location_id")))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "unsubscribed"})
}

// optionalCoordinates returns nil when neither latitude nor longitude was
// sent. Sending only one of them is an error.
func optionalCoordinates(lat, lng *float64) (*model.Coordinates, error) {
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, model.InvalidArgument("latitude and longitude must be sent together")
	}
	return &model.Coordinates{Latitude: *lat, Longitude: *lng}, nil
}

func requiredCoordinates(lat, lng *float64) (*model.Coordinates, error) {
	at, err := optionalCoordinates(lat, lng)
	if err != nil {
		return nil, err
	}
	if at == nil {
		return nil, model.InvalidArgument("latitude and longitude are required")
	}
	return at, nil
}
