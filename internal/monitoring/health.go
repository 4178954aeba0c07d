package monitoring

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"

	"anondrop/backend/internal/storage"
)

// HealthStatus 健康状态
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck 单项健康检查结果
type HealthCheck struct {
	Name        string        `json:"name"`
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	Duration    time.Duration `json:"duration"`
	LastChecked time.Time     `json:"last_checked"`
}

// HealthReport 健康报告
type HealthReport struct {
	Status      HealthStatus  `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
	Uptime      time.Duration `json:"uptime"`
	Checks      []HealthCheck `json:"checks"`
	Version     string        `json:"version"`
	Environment string        `json:"environment"`
}

// HealthChecker 健康检查器
type HealthChecker struct {
	store     storage.Store
	blobPath  string
	logger    *zap.Logger
	startTime time.Time
	version   string
	env       string
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store storage.Store, blobPath string, logger *zap.Logger, version, env string) *HealthChecker {
	return &HealthChecker{
		store:     store,
		blobPath:  blobPath,
		logger:    logger,
		startTime: time.Now(),
		version:   version,
		env:       env,
	}
}

// CheckHealth 执行全部健康检查并汇总整体状态
func (hc *HealthChecker) CheckHealth() *HealthReport {
	report := &HealthReport{
		Timestamp:   time.Now(),
		Uptime:      time.Since(hc.startTime),
		Version:     hc.version,
		Environment: hc.env,
		Checks:      make([]HealthCheck, 0),
	}

	checks := []func() HealthCheck{
		hc.checkDatabase,
		hc.checkRateLimiter,
		hc.checkBlobStore,
		hc.checkMemory,
		hc.checkGoroutines,
	}

	overallStatus := HealthStatusHealthy

	for _, check := range checks {
		healthCheck := check()
		report.Checks = append(report.Checks, healthCheck)

		switch healthCheck.Status {
		case HealthStatusUnhealthy:
			overallStatus = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overallStatus != HealthStatusUnhealthy {
				overallStatus = HealthStatusDegraded
			}
		}
	}

	report.Status = overallStatus
	return report
}

// checkDatabase 检查令牌存储连接
func (hc *HealthChecker) checkDatabase() HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Name:        "database",
		LastChecked: start,
	}

	if err := hc.store.Health(); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("Storage connection failed: %v", err)
	} else {
		check.Status = HealthStatusHealthy
		check.Message = "Storage connection is healthy"
	}

	check.Duration = time.Since(start)
	return check
}

// checkRateLimiter 检查限流计数器后端
func (hc *HealthChecker) checkRateLimiter() HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Name:        "rate_limiter",
		LastChecked: start,
	}

	if _, err := hc.store.GetRateLimit("health_check"); err != nil {
		check.Status = HealthStatusDegraded
		check.Message = fmt.Sprintf("Rate limiter backend issue: %v", err)
	} else {
		check.Status = HealthStatusHealthy
		check.Message = "Rate limiter backend is healthy"
	}

	check.Duration = time.Since(start)
	return check
}

// checkBlobStore 检查投递文件目录可写
func (hc *HealthChecker) checkBlobStore() HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Name:        "blob_store",
		LastChecked: start,
	}

	probe := filepath.Join(hc.blobPath, ".health")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("Blob directory not writable: %v", err)
	} else {
		os.Remove(probe)
		check.Status = HealthStatusHealthy
		check.Message = "Blob directory is writable"
	}

	check.Duration = time.Since(start)
	return check
}

// checkMemory 检查内存使用
func (hc *HealthChecker) checkMemory() HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Name:        "memory",
		LastChecked: start,
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	memoryUsageMB := float64(m.Alloc) / 1024 / 1024
	memoryLimitMB := 1024.0

	if memoryUsageMB > memoryLimitMB {
		check.Status = HealthStatusDegraded
		check.Message = fmt.Sprintf("High memory usage: %.2f MB", memoryUsageMB)
	} else {
		check.Status = HealthStatusHealthy
		check.Message = fmt.Sprintf("Memory usage: %.2f MB", memoryUsageMB)
	}

	check.Duration = time.Since(start)
	return check
}

// checkGoroutines 检查协程数量
func (hc *HealthChecker) checkGoroutines() HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Name:        "goroutines",
		LastChecked: start,
	}

	numGoroutines := runtime.NumGoroutine()
	if numGoroutines > 1000 {
		check.Status = HealthStatusDegraded
		check.Message = fmt.Sprintf("High goroutine count: %d", numGoroutines)
	} else {
		check.Status = HealthStatusHealthy
		check.Message = fmt.Sprintf("Goroutines: %d", numGoroutines)
	}

	check.Duration = time.Since(start)
	return check
}

// IsHealthy 检查系统是否健康
func (hc *HealthChecker) IsHealthy() bool {
	report := hc.CheckHealth()
	return report.Status == HealthStatusHealthy
}

// GetUptime 获取系统运行时间
func (hc *HealthChecker) GetUptime() time.Duration {
	return time.Since(hc.startTime)
}

// StartPeriodicHealthCheck 启动定期健康检查
func (hc *HealthChecker) StartPeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := hc.CheckHealth()

			switch report.Status {
			case HealthStatusUnhealthy:
				hc.logger.Error("System health check failed",
					zap.String("status", string(report.Status)),
					zap.Duration("uptime", report.Uptime),
				)
			case HealthStatusDegraded:
				hc.logger.Warn("System health check degraded",
					zap.String("status", string(report.Status)),
					zap.Duration("uptime", report.Uptime),
				)
			default:
				hc.logger.Debug("System health check passed",
					zap.String("status", string(report.Status)),
					zap.Duration("uptime", report.Uptime),
				)
			}
		}
	}
}
