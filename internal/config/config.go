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

// DatabaseConfig 定义数据库连接配置（支持 PostgreSQL 和 MySQL）
type DatabaseConfig struct {
	Type string // 数据库类型: "postgres" 或 "mysql"，留空使用内存存储
	DSN  string // 数据库连接字符串
}

// RedisConfig 定义 Redis 服务配置（限流计数用，可选）
type RedisConfig struct {
	Address  string // Redis 服务地址，留空禁用 Redis
	Password string // Redis 认证密码
	DB       int    // Redis 数据库编号，默认 0
}

// StorageConfig 定义对象存储配置
type StorageConfig struct {
	Backend  string // 存储后端: "s3" 或 "filesystem"
	Path     string // filesystem 后端的根目录
	S3Bucket string // s3 后端的桶名
	S3Region string // s3 区域
	Endpoint string // 可选，S3 兼容服务的自定义端点（R2、MinIO 等）
}

// PushConfig 定义 Web Push 投递配置
type PushConfig struct {
	Subscriber      string        // VAPID 订阅者标识（mailto: 地址）
	VAPIDPublicKey  string        // VAPID 公钥
	VAPIDPrivateKey string        // VAPID 私钥
	Timeout         time.Duration // 单次投递超时，默认 10s
}

// IngestConfig 定义入站投递配置
type IngestConfig struct {
	MaxBodySize int64 // 入站请求体上限（字节），默认 30MB
	Workers     int   // 副作用协程池大小，默认 8
	QueueSize   int   // 副作用任务队列长度，默认 256
	RatePerMin  int   // 单 IP 每分钟入站请求上限，默认 120
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	LogFile     string // 日志文件路径，留空仅输出到控制台
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Push     PushConfig
	Ingest   IngestConfig
	CORS     CORSConfig
	Log      LogConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: WEBMAIL_
// 例如: WEBMAIL_SERVER_PORT, WEBMAIL_PUSH_VAPID_PUBLIC_KEY
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，.env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("webmail")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("storage.backend", "filesystem")
	viper.SetDefault("storage.path", "./data/blob-storage")
	viper.SetDefault("storage.s3_bucket", "")
	viper.SetDefault("storage.s3_region", "auto")
	viper.SetDefault("storage.endpoint", "")
	viper.SetDefault("push.subscriber", "mailto:admin@localhost")
	viper.SetDefault("push.vapid_public_key", "")
	viper.SetDefault("push.vapid_private_key", "")
	viper.SetDefault("push.timeout", "10s")
	viper.SetDefault("ingest.max_body_size", 30*1024*1024)
	viper.SetDefault("ingest.workers", 8)
	viper.SetDefault("ingest.queue_size", 256)
	viper.SetDefault("ingest.rate_per_min", 120)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")

	pushTimeout, err := time.ParseDuration(viper.GetString("push.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid push.timeout: %w", err)
	}

	storageBackend := viper.GetString("storage.backend")
	switch storageBackend {
	case "s3":
		if viper.GetString("storage.s3_bucket") == "" {
			return nil, fmt.Errorf("storage.s3_bucket is required for the s3 backend")
		}
	case "filesystem":
		if viper.GetString("storage.path") == "" {
			return nil, fmt.Errorf("storage.path is required for the filesystem backend")
		}
	default:
		return nil, fmt.Errorf("unknown storage.backend %q", storageBackend)
	}

	dbType := viper.GetString("database.type")
	if dbType != "" && dbType != "postgres" && dbType != "mysql" {
		return nil, fmt.Errorf("unknown database.type %q", dbType)
	}
	if dbType != "" && viper.GetString("database.dsn") == "" {
		return nil, fmt.Errorf("database.dsn is required when database.type is set")
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Database: DatabaseConfig{
			Type: dbType,
			DSN:  viper.GetString("database.dsn"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Backend:  storageBackend,
			Path:     viper.GetString("storage.path"),
			S3Bucket: viper.GetString("storage.s3_bucket"),
			S3Region: viper.GetString("storage.s3_region"),
			Endpoint: viper.GetString("storage.endpoint"),
		},
		Push: PushConfig{
			Subscriber:      viper.GetString("push.subscriber"),
			VAPIDPublicKey:  viper.GetString("push.vapid_public_key"),
			VAPIDPrivateKey: viper.GetString("push.vapid_private_key"),
			Timeout:         pushTimeout,
		},
		Ingest: IngestConfig{
			MaxBodySize: viper.GetInt64("ingest.max_body_size"),
			Workers:     viper.GetInt("ingest.workers"),
			QueueSize:   viper.GetInt("ingest.queue_size"),
			RatePerMin:  viper.GetInt("ingest.rate_per_min"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			LogFile:     viper.GetString("log.file"),
		},
	}

	if cfg.Ingest.Workers <= 0 {
		cfg.Ingest.Workers = 8
	}
	if cfg.Ingest.QueueSize <= 0 {
		cfg.Ingest.QueueSize = 256
	}

	return cfg, nil
}

// loadEnvFile 加载 .env 文件（当前目录或父目录）
func loadEnvFile() {
	candidates := []string{".env", filepath.Join("..", ".env")}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

// parseList 解析逗号分隔的列表
func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}
