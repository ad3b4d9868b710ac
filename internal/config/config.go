package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（状态事件原子入流，Relay 异步转 Kafka）
	StatusEventStream   string
	StatusEventGroup    string
	StatusEventConsumer string

	// 下单/认证接口限流
	OrderRateLimit  int
	OrderRateWindow time.Duration

	// 取消订单滑动窗口：窗口内取消次数达到上限后禁止再下单
	CancelWindow time.Duration
	CancelLimit  int

	// 管理员密码与 JWT 密钥（demo 级别保护）
	AdminPassword string
	JWTSecret     string
	JWTTTL        time.Duration

	// 忘记 PIN 重置码有效期
	ResetCodeTTL time.Duration
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8000"),
		DBPath:              getEnv("DB_PATH", "store.db"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:             0,
		KafkaBrokers:        splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "grain-store-status-events"),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "grain-store-status-audit"),
		StatusEventStream:   getEnv("STATUS_EVENT_STREAM", "grain_store:status_events"),
		StatusEventGroup:    getEnv("STATUS_EVENT_GROUP", "grain-store-relay-group"),
		StatusEventConsumer: getEnv("STATUS_EVENT_CONSUMER", "grain-store-relay-1"),
		OrderRateLimit:      60,
		OrderRateWindow:     time.Minute,
		CancelWindow:        time.Hour,
		CancelLimit:         3,
		AdminPassword:       getEnv("ADMIN_PASSWORD", "admin123"),
		JWTSecret:           getEnv("SECRET_KEY", "quickshop-secret-key-change-in-production"),
		JWTTTL:              24 * time.Hour,
		ResetCodeTTL:        10 * time.Minute,
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("ORDER_RATE_LIMIT", cfg.OrderRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_LIMIT must be > 0")
	}
	cfg.OrderRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("ORDER_RATE_WINDOW_SEC", int(cfg.OrderRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_WINDOW_SEC must be > 0")
	}
	cfg.OrderRateWindow = time.Duration(rateWindowSec) * time.Second

	cancelWindowMin, err := getEnvInt("CANCEL_WINDOW_MIN", int(cfg.CancelWindow.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CANCEL_WINDOW_MIN: %w", err)
	}
	if cancelWindowMin <= 0 {
		return AppConfig{}, fmt.Errorf("CANCEL_WINDOW_MIN must be > 0")
	}
	cfg.CancelWindow = time.Duration(cancelWindowMin) * time.Minute

	cancelLimit, err := getEnvInt("CANCEL_LIMIT", cfg.CancelLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CANCEL_LIMIT: %w", err)
	}
	if cancelLimit <= 0 {
		return AppConfig{}, fmt.Errorf("CANCEL_LIMIT must be > 0")
	}
	cfg.CancelLimit = cancelLimit

	jwtTTLHour, err := getEnvInt("JWT_TTL_HOUR", int(cfg.JWTTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid JWT_TTL_HOUR: %w", err)
	}
	if jwtTTLHour <= 0 {
		return AppConfig{}, fmt.Errorf("JWT_TTL_HOUR must be > 0")
	}
	cfg.JWTTTL = time.Duration(jwtTTLHour) * time.Hour

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.StatusEventStream == "" {
		return AppConfig{}, fmt.Errorf("STATUS_EVENT_STREAM must not be empty")
	}
	if cfg.StatusEventGroup == "" {
		return AppConfig{}, fmt.Errorf("STATUS_EVENT_GROUP must not be empty")
	}
	if cfg.StatusEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("STATUS_EVENT_CONSUMER must not be empty")
	}
	if cfg.JWTSecret == "" {
		return AppConfig{}, fmt.Errorf("SECRET_KEY must not be empty")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
