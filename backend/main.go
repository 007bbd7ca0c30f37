package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cleanproof/backend/config"
	"cleanproof/backend/consensus"
	"cleanproof/backend/db"
	"cleanproof/backend/dedup"
	"cleanproof/backend/geo"
	"cleanproof/backend/ledger"
	"cleanproof/backend/locations"
	"cleanproof/backend/metrics"
	"cleanproof/backend/notify"
	"cleanproof/backend/rabbitmq"
	"cleanproof/backend/server"
	"cleanproof/backend/server/middleware"
	"cleanproof/backend/session"
	"cleanproof/backend/similarity"
	"cleanproof/backend/timewindow"
	"cleanproof/backend/trust"
	"cleanproof/common"

	"github.com/apex/log"
)

func main() {
	cfg := config.Load()
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	log.Info("Starting the cleanproof service...")

	dbc, err := common.DBConnect(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbc.Close()

	if err := db.EnsureSchema(context.Background(), dbc); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}
	metrics.Register()

	policy, err := similarity.ParsePolicy(cfg.SimilarityUnavailablePolicy)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	var scorer trust.Scorer = similarity.Disabled{}
	if cfg.SimilarityURL != "" {
		scorer = similarity.NewClient(cfg.SimilarityURL, cfg.SimilarityThreshold, cfg.SimilarityTimeout)
	} else {
		log.Warnf("SIMILARITY_SERVICE_URL not set, image signal is unavailable (policy %s)", policy)
	}

	// Notifications are fire and forget; the engine runs without a broker.
	var fanout *notify.Fanout
	publisher, err := rabbitmq.NewPublisher(cfg.GetAMQPURL(), cfg.RabbitMQExchange, cfg.RabbitMQFanoutRoutingKey)
	if err != nil {
		log.Errorf("Failed to create RabbitMQ publisher, guardian notifications disabled: %v", err)
		fanout = notify.NewFanout(nil)
	} else {
		defer publisher.Close()
		fanout = notify.NewFanout(publisher)
	}

	store := db.New(dbc)
	matcher := geo.NewMatcher(cfg.GeoCeilingMeters, cfg.AccuracyThresholdMeters)
	resolver := locations.NewResolver(store, geo.Grid{Decimals: int32(cfg.GridDecimals)}, matcher)
	deduplicator := dedup.New(store)
	points := ledger.New(store)

	tracker := session.NewTracker(store, deduplicator, resolver)
	evaluator := trust.NewEvaluator(store, deduplicator, matcher,
		timewindow.NewGuard(cfg.SessionMinDuration, cfg.SessionMaxDuration),
		scorer, policy,
		trust.Points{Base: cfg.BasePoints, Repeat: cfg.RepeatCleanPoints})
	counter := consensus.NewCounter(store, resolver, fanout, consensus.Config{
		Threshold: cfg.ConsensusThreshold,
		Window:    cfg.ConsensusWindow,
		Points:    cfg.DirtyConfirmationPoints,
	})

	handlers := server.NewHandlers(tracker, evaluator, counter, points, store)
	auth := middleware.AuthMiddleware(middleware.NewValidator(cfg.JWTSecret, cfg.AuthServiceURL))
	limiter := middleware.NewRateLimiter(cfg.SubmissionsPerMinute, cfg.SubmissionsBurst)
	router := server.NewRouter(handlers, auth, limiter.Middleware())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		log.Infof("Cleanproof service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	log.Info("Server exited")
}
