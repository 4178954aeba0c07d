package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// DropConfig 定义投递令牌服务的核心业务配置
type DropConfig struct {
	DefaultTTL        time.Duration // 请求带 TTL 但未指定时长时使用的默认值
	MaxFileSize       int64         // 投递文件大小上限（字节），默认 50 MiB
	BlockedExtensions []string      // 禁止投递的文件扩展名（含前导点，小写）
	Timezone          string        // 收件箱按日分组使用的时区，IANA 名称
	SweepEnabled      bool          // 是否启用过期令牌后台停用任务
	SweepInterval     time.Duration // 后台停用任务执行间隔
	DepositPerMinute  int           // 单来源每分钟投递上限
}

// BlobConfig 定义文件载荷存储配置
type BlobConfig struct {
	Path string // blob 存储根目录
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，为空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Enabled  bool   // 是否启用 Redis（会话与限流转由 Redis 承载）
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "anondrop"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// SessionConfig 定义 PIN 校验会话配置
type SessionConfig struct {
	TTL            time.Duration // 会话生存时间，默认 10 分钟
	MaxPinAttempts int           // PIN 连续失败锁定阈值，默认 3 次
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // HTTP 服务器配置
	Drop     DropConfig     // 投递令牌服务配置
	Blob     BlobConfig     // 文件载荷存储配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
	JWT      JWTConfig      // JWT 认证配置
	Session  SessionConfig  // PIN 会话配置
}

// defaultBlockedExtensions 默认的危险扩展名表
const defaultBlockedExtensions = "exe,bat,cmd,sh,bin,app,jar,msi,dmg,pkg,deb,rpm,scr,com"

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: ANONDROP_
// 例如: ANONDROP_SERVER_HOST, ANONDROP_JWT_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("anondrop")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("drop.default_ttl", "24h")
	viper.SetDefault("drop.max_file_size", 50*1024*1024)
	viper.SetDefault("drop.blocked_extensions", defaultBlockedExtensions)
	viper.SetDefault("drop.timezone", "UTC")
	viper.SetDefault("drop.sweep_enabled", false)
	viper.SetDefault("drop.sweep_interval", "1h")
	viper.SetDefault("drop.deposit_per_minute", 10)
	viper.SetDefault("blob.path", "./data/blobs")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "anondrop")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")
	viper.SetDefault("session.ttl", "10m")
	viper.SetDefault("session.max_pin_attempts", 3)

	defaultTTL, err := time.ParseDuration(viper.GetString("drop.default_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid drop.default_ttl: %w", err)
	}

	maxFileSize := viper.GetInt64("drop.max_file_size")
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("drop.max_file_size must be positive")
	}

	blockedExtensions := parseExtensions(viper.GetString("drop.blocked_extensions"))

	timezone := viper.GetString("drop.timezone")
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("invalid drop.timezone: %w", err)
	}

	sweepInterval, err := time.ParseDuration(viper.GetString("drop.sweep_interval"))
	if err != nil || sweepInterval <= 0 {
		sweepInterval = time.Hour
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	sessionTTL, err := time.ParseDuration(viper.GetString("session.ttl"))
	if err != nil || sessionTTL <= 0 {
		sessionTTL = 10 * time.Minute
	}

	maxPinAttempts := viper.GetInt("session.max_pin_attempts")
	if maxPinAttempts <= 0 {
		maxPinAttempts = 3
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set ANONDROP_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Drop: DropConfig{
			DefaultTTL:        defaultTTL,
			MaxFileSize:       maxFileSize,
			BlockedExtensions: blockedExtensions,
			Timezone:          timezone,
			SweepEnabled:      viper.GetBool("drop.sweep_enabled"),
			SweepInterval:     sweepInterval,
			DepositPerMinute:  viper.GetInt("drop.deposit_per_minute"),
		},
		Blob: BlobConfig{
			Path: viper.GetString("blob.path"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Session: SessionConfig{
			TTL:            sessionTTL,
			MaxPinAttempts: maxPinAttempts,
		},
	}

	return cfg, nil
}

// parseExtensions 将逗号分隔的扩展名解析为带前导点的小写列表
//
// 输入 "exe, .BAT" 会归一化为 [".exe", ".bat"]
func parseExtensions(value string) []string {
	out := parseList(value)
	for i := range out {
		ext := strings.ToLower(out[i])
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[i] = ext
	}
	return out
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
