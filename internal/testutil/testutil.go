// Package testutil 整合測試共用的 PostgreSQL / Redis 初始化
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/xavierau/event-platform-sub006/config"
	"github.com/xavierau/event-platform-sub006/internal/database"
	"github.com/xavierau/event-platform-sub006/migrations"
)

// SetupDatabase 連線測試 DB 並套用 migrations
func SetupDatabase() (*pgxpool.Pool, func(), error) {
	cfg := config.LoadTestConfig()

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize test database: %w", err)
	}

	if err := migrations.Apply(context.Background(), pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return pool, pool.Close, nil
}

// SetupRedisOnly 僅初始化 Redis，用於只依賴 Redis 的測試
func SetupRedisOnly() (*redis.Client, func(), error) {
	cfg := config.LoadTestConfig()

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	cleanup := func() { _ = rdb.Close() }
	return rdb, cleanup, nil
}

// Truncate 清空所有測試資料，保留 schema
func Truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE purchase_link_purchases, purchase_link_accesses, bookings, transactions,
			purchase_links, hold_allocations, ticket_holds, ticket_definitions,
			event_occurrences, users
		RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
}
