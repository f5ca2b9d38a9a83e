package config

import (
	"fmt"
	"os"
	"strconv"

	"vetorial-dashboard/internal/common/config"
)

// 存储后端
const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
	BackendMemory   = "memory"
)

// 变更通知传输
const (
	TransportPostgres = "postgres"
	TransportRedis    = "redis"
	TransportMQTT     = "mqtt"
	TransportNone     = "none"
)

// Config 看板服务配置
type Config struct {
	HTTP struct {
		Addr string
	}

	Database config.DatabaseConfig
	// 是否连接 Record Store；false 时直接走本地缓存 / 种子数据
	DBEnabled bool

	Redis config.RedisConfig
	MQTT  config.MQTTConfig

	Backend struct {
		Mode    string // postgres | rest | memory
		RestURL string // 托管后端地址（REST 模式）
		APIKey  string
	}

	Realtime struct {
		Transport string // postgres | redis | mqtt | none
		PGChannel string // LISTEN 频道
		Stream    string // Redis Stream 名称
	}

	Cache struct {
		Key string // 最近一次成功加载的记录列表
	}

	Dashboard struct {
		Year string // 默认年份，空表示不过滤
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "vetorial"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5
	cfg.Database.LoadFromEnv("DB")
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "vetorial-dashboard"
	cfg.MQTT.Topic = "vetorial/records/changes"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Backend.Mode = getEnv("BACKEND_MODE", BackendPostgres)
	cfg.Backend.RestURL = getEnv("BACKEND_REST_URL", "")
	cfg.Backend.APIKey = getEnv("BACKEND_REST_API_KEY", "")

	cfg.Realtime.Transport = getEnv("REALTIME_TRANSPORT", TransportPostgres)
	cfg.Realtime.PGChannel = getEnv("REALTIME_PG_CHANNEL", "records_changes")
	cfg.Realtime.Stream = getEnv("REALTIME_STREAM", "vetorial:records:changes")

	cfg.Cache.Key = getEnv("CACHE_KEY", "vetorial:records:last-known-good")
	cfg.Dashboard.Year = getEnv("DASHBOARD_YEAR", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend.Mode {
	case BackendPostgres, BackendMemory:
	case BackendREST:
		if c.Backend.RestURL == "" {
			return fmt.Errorf("BACKEND_REST_URL is required when BACKEND_MODE=rest")
		}
	default:
		return fmt.Errorf("invalid BACKEND_MODE %q", c.Backend.Mode)
	}

	switch c.Realtime.Transport {
	case TransportRedis, TransportMQTT, TransportNone:
	case TransportPostgres:
		if c.Backend.Mode != BackendPostgres {
			return fmt.Errorf("REALTIME_TRANSPORT=postgres requires BACKEND_MODE=postgres")
		}
	default:
		return fmt.Errorf("invalid REALTIME_TRANSPORT %q", c.Realtime.Transport)
	}

	if c.Dashboard.Year != "" {
		if _, err := strconv.Atoi(c.Dashboard.Year); err != nil || len(c.Dashboard.Year) != 4 {
			return fmt.Errorf("invalid DASHBOARD_YEAR %q", c.Dashboard.Year)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
