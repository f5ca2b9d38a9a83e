package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vetorial-dashboard/internal/access"
	"vetorial-dashboard/internal/cache"
	"vetorial-dashboard/internal/common/database"
	"vetorial-dashboard/internal/common/logger"
	"vetorial-dashboard/internal/common/mqtt"
	commonredis "vetorial-dashboard/internal/common/redis"
	"vetorial-dashboard/internal/config"
	"vetorial-dashboard/internal/datasource"
	"vetorial-dashboard/internal/domain"
	httpapi "vetorial-dashboard/internal/http"
	"vetorial-dashboard/internal/metrics"
	"vetorial-dashboard/internal/realtime"
	"vetorial-dashboard/internal/repository"
	"vetorial-dashboard/internal/seed"
	"vetorial-dashboard/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "vetorial-dashboard")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Record Store / 用户授权
	store, db := openStore(ctx, cfg, log)

	// Local Cache
	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	if err := commonredis.Ping(ctx, redisClient); err != nil {
		log.Warn("Redis unavailable, local cache reads will fall through to seed data", zap.Error(err))
	}
	recordCache := cache.NewRecordCache(cache.NewRedisKVStore(redisClient), cfg.Cache.Key, log)

	// 变更通知
	feed, publisher, mqttClient := openRealtime(cfg, db, redisClient, log)

	dashboard := service.NewDashboard(service.DashboardDeps{
		Resolver:  datasource.NewResolver(store.Records, store.Localities, recordCache, seed.Records, log),
		Access:    access.NewResolver(store, log),
		Store:     store,
		Snapshots: recordCache,
		Feed:      feed,
		Publisher: publisher,
		Year:      cfg.Dashboard.Year,
		Logger:    log,
	})

	if _, err := dashboard.Load(ctx); err != nil {
		log.Warn("Initial load finished with warnings", zap.Error(err))
	}
	if feed != nil {
		if err := dashboard.StartLive(ctx); err != nil {
			// 实时更新失败不影响看板，记录保持不变
			log.Error("Live updates unavailable", zap.Error(err))
		}
	}

	metrics.Register()
	router := httpapi.NewRouter(log)
	router.RegisterDashboardRoutes(httpapi.NewDashboardHandler(dashboard, log))
	router.RegisterMetricsRoute()
	srv := service.NewServer(cfg.HTTP.Addr, router, log)
	if db != nil {
		srv.OnStop("postgres", func() error { return database.Close(db) })
	}
	srv.OnStop("redis", func() error { return commonredis.Close(redisClient) })
	if mqttClient != nil {
		srv.OnStop("mqtt", func() error { mqttClient.Disconnect(); return nil })
	}
	srv.OnStop("live updates", func() error { dashboard.StopLive(); return nil })

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// openStore 按 BACKEND_MODE 选择存储；DB 未启用或连接失败时使用内存授权库并跳过存储层
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*repository.Store, *sql.DB) {
	if cfg.DBEnabled {
		switch cfg.Backend.Mode {
		case config.BackendPostgres:
			db, err := database.NewPostgresDB(&cfg.Database)
			if err == nil {
				log.Info("Record store enabled", zap.String("backend", cfg.Backend.Mode))
				bootstrapPostgresAdmin(ctx, db, log)
				return repository.NewPostgresStore(db), db
			}
			log.Warn("DB enabled but connection failed, falling back to local data", zap.Error(err))
		case config.BackendREST:
			rest := repository.NewRestStore(cfg.Backend.RestURL, cfg.Backend.APIKey, log)
			if err := rest.Ping(ctx); err != nil {
				// 不阻止启动，每次加载时仍会尝试
				log.Warn("Hosted backend not reachable yet", zap.Error(err))
			}
			log.Info("Record store enabled", zap.String("backend", cfg.Backend.Mode))
			return rest.AsStore(), nil
		case config.BackendMemory:
			log.Info("Record store enabled", zap.String("backend", cfg.Backend.Mode))
			return bootstrapMemory().AsStore(), nil
		}
	}

	store := bootstrapMemory().AsStore()
	store.Records = nil
	return store, nil
}

func bootstrapAdminID() string {
	if id := os.Getenv("BOOTSTRAP_ADMIN_ID"); id != "" {
		return id
	}
	return "admin"
}

// bootstrapMemory 内存模式下预置管理员和默认权限级别
func bootstrapMemory() *repository.MemoryStore {
	mem := repository.NewMemoryStore()
	mem.PutAccessLevel(domain.AccessLevel{
		ID:          "agente",
		Name:        "Agente de endemias",
		Permissions: []string{domain.PermissionDashboard, domain.PermissionForm},
	})
	mem.PutAccessLevel(domain.AccessLevel{
		ID:          "leitura",
		Name:        "Somente leitura",
		Permissions: []string{domain.PermissionDashboard},
	})
	mem.PutUser(domain.User{ID: bootstrapAdminID(), Name: "Administrador", Role: domain.RoleAdmin, Active: true})
	return mem
}

// bootstrapPostgresAdmin 确保 DB 中存在一个可用的管理员；失败只记录日志
func bootstrapPostgresAdmin(ctx context.Context, db *sql.DB, log *zap.Logger) {
	if os.Getenv("SEED_ADMIN") == "false" {
		return
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, name, role, active)
		 VALUES ($1, $2, $3, TRUE)
		 ON CONFLICT (id)
		 DO UPDATE SET role = EXCLUDED.role, active = TRUE`,
		bootstrapAdminID(), "Administrador", domain.RoleAdmin,
	)
	if err != nil {
		log.Warn("Failed to bootstrap admin user", zap.Error(err))
	}
}

// openRealtime 按 REALTIME_TRANSPORT 创建 Feed 和 Publisher
// postgres：触发器 NOTIFY，由数据库发布，应用侧不再发布
func openRealtime(cfg *config.Config, db *sql.DB, redisClient *redis.Client, log *zap.Logger) (realtime.Feed, realtime.Publisher, *mqtt.Client) {
	switch cfg.Realtime.Transport {
	case config.TransportPostgres:
		if db == nil {
			log.Warn("Postgres realtime transport requires a database connection, live updates disabled")
			return nil, nil, nil
		}
		return realtime.NewPostgresFeed(cfg.Database.GetDSN(), cfg.Realtime.PGChannel, log), realtime.NoopPublisher{}, nil

	case config.TransportRedis:
		return realtime.NewRedisStreamFeed(redisClient, cfg.Realtime.Stream, log),
			realtime.NewRedisStreamPublisher(redisClient, cfg.Realtime.Stream), nil

	case config.TransportMQTT:
		feed := realtime.NewMQTTFeed(cfg.MQTT, log)
		client, err := mqtt.NewClient(&cfg.MQTT, log, nil)
		if err != nil {
			log.Warn("MQTT publisher unavailable, changes will not be broadcast", zap.Error(err))
			return feed, nil, nil
		}
		return feed, realtime.NewMQTTPublisher(client, cfg.MQTT.Topic, cfg.MQTT.QoS), client

	default:
		log.Info("Live updates disabled")
		return nil, nil, nil
	}
}
