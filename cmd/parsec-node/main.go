// Command parsec-node runs a single consensus node: it bootstraps an
// Engine as the sole founder of its own genesis section and serves
// the ops REST surface, following the teacher's cmd/api/main.go
// bootstrap shape (load config, build logger/metrics, build router,
// serve with graceful shutdown).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ruvnet/parsec/internal/api/rest"
	"github.com/ruvnet/parsec/internal/auth"
	"github.com/ruvnet/parsec/internal/config"
	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/engine"
	"github.com/ruvnet/parsec/internal/crypto/idkeys"
	"github.com/ruvnet/parsec/internal/middleware"
	"github.com/ruvnet/parsec/pkg/dump"
	"github.com/ruvnet/parsec/pkg/metrics"
)

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	identity, err := idkeys.GenerateSecretId(cfg.Node.Name)
	if err != nil {
		logger.Fatal("failed to generate node identity", zap.Error(err))
	}

	// A single-founder genesis section: this node is the sole member
	// of its own section at startup and grows via VoteToAdd. Booting
	// from a pre-agreed multi-founder genesis group requires exchanging
	// founder public keys out of band first; that bootstrap path isn't
	// wired here.
	genesisGroup := []consensus.PublicId{identity.PublicId()}

	m := metrics.NewMetrics()
	eng, err := engine.FromGenesis(identity, genesisGroup, engine.Config{
		Logger:   logger,
		Metrics:  m,
		DumpHook: dump.LoggingHook{Logger: logger},
		IdentityOf: func(raw []byte) (consensus.PublicId, error) {
			return idkeys.UnmarshalPublicId(raw)
		},
	})
	if err != nil {
		logger.Fatal("failed to bootstrap engine", zap.Error(err))
	}

	authSvc := auth.NewService(cfg.JWT)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.RateLimit(cfg.RateLimit))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := rest.NewHandler(eng, authSvc, cfg.JWT, logger)
	v1 := router.Group("/api/v1")
	handler.SetupRoutes(v1)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.RESTPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting parsec node ops surface",
			zap.String("node", cfg.Node.Name),
			zap.Int("rest_port", cfg.Server.RESTPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("ops server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("ops server forced to shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
