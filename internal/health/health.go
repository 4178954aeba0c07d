package health

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"anondrop/backend/internal/storage"
)

// HealthChecker 对外暴露存活与就绪探针。
type HealthChecker struct {
	health   healthcheck.Handler
	store    storage.Store
	blobPath string
	logger   *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store storage.Store, blobPath string, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health:   healthcheck.NewHandler(),
		store:    store,
		blobPath: blobPath,
		logger:   logger,
	}

	hc.addChecks()

	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	// 令牌与投递存储
	hc.health.AddLivenessCheck("database", func() error {
		return hc.store.Health()
	})

	// 限流计数器后端
	hc.health.AddReadinessCheck("rate_limiter", RateLimitHealthCheck(hc.store))

	// 投递文件目录
	hc.health.AddReadinessCheck("blob_store", BlobHealthCheck(hc.blobPath))
}

// Handler 返回健康检查处理器
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活探针
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪探针
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// CheckHealth 执行健康检查
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["database"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["database"] = "OK"
	}

	if err := RateLimitHealthCheck(hc.store)(); err != nil {
		results["rate_limiter"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["rate_limiter"] = "OK"
	}

	if err := BlobHealthCheck(hc.blobPath)(); err != nil {
		results["blob_store"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["blob_store"] = "OK"
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)

	return results
}

// RateLimitHealthCheck 限流后端健康检查
func RateLimitHealthCheck(store storage.RateLimitRepository) healthcheck.Check {
	return func() error {
		_, err := store.GetRateLimit("health_check")
		return err
	}
}

// BlobHealthCheck 投递文件目录可写检查
func BlobHealthCheck(blobPath string) healthcheck.Check {
	return func() error {
		probe := filepath.Join(blobPath, ".health")
		if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
			return err
		}
		return os.Remove(probe)
	}
}
