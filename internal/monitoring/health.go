package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"webmail/backend/internal/storage"
)

// HealthChecker 健康检查器，暴露 /live 与 /ready
type HealthChecker struct {
	handler healthcheck.Handler
	store   storage.Store
	logger  *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store storage.Store, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		handler: healthcheck.NewHandler(),
		store:   store,
		logger:  logger,
	}

	hc.handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(2000))

	hc.handler.AddReadinessCheck("database", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return hc.store.Health(ctx)
	})

	return hc
}

// LiveEndpoint 存活检查
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.handler.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.handler.ReadyEndpoint(w, r)
}
