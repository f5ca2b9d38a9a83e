package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"vetorial-dashboard/internal/common/database"
	"vetorial-dashboard/internal/common/logger"
	"vetorial-dashboard/internal/config"

	"go.uber.org/zap"
)

// 用法：apply-migration migrations/001_init.sql
// 整个文件作为一次简单查询执行（函数体内含分号，不能按 ; 拆分）
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <migration_file.sql>\n", os.Args[0])
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewLogger(cfg.Log.Level, "console", "apply-migration")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	migrationFile := os.Args[1]
	sqlContent, err := os.ReadFile(migrationFile)
	if err != nil {
		log.Fatal("Failed to read migration file", zap.String("file", migrationFile), zap.Error(err))
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Cannot connect to database", zap.Error(err))
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := db.ExecContext(ctx, string(sqlContent)); err != nil {
		log.Fatal("Migration failed", zap.String("file", migrationFile), zap.Error(err))
	}
	log.Info("Migration applied",
		zap.String("file", migrationFile),
		zap.String("database", cfg.Database.Database),
	)
}
