// Package dbtest opens in-memory sqlite databases carrying the settlement
// schema for repository tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS group_buy_deals (
  id TEXT PRIMARY KEY,
  product_ref TEXT NOT NULL,
  seller_ref TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  discount_percentage TEXT NOT NULL,
  min_quantity INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL DEFAULT 'active',
  expires_at DATETIME NOT NULL,
  settled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS deal_pledges (
  id TEXT PRIMARY KEY,
  deal_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  CONSTRAINT deal_pledges_deal_buyer_key UNIQUE (deal_id, buyer_id)
);`, `
CREATE TABLE IF NOT EXISTS settlement_items (
  id TEXT PRIMARY KEY,
  deal_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  order_ref TEXT,
  payment_ref TEXT,
  outcome TEXT NOT NULL,
  failure_kind TEXT,
  failure_stage TEXT,
  failure_reason TEXT,
  attempts INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT settlement_items_deal_buyer_key UNIQUE (deal_id, buyer_id)
);`, `
CREATE TABLE IF NOT EXISTS group_buy_orders (
  id TEXT PRIMARY KEY,
  idempotency_key TEXT NOT NULL,
  deal_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  seller_ref TEXT NOT NULL,
  product_ref TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  created_at DATETIME,
  CONSTRAINT group_buy_orders_idempotency_key_key UNIQUE (idempotency_key)
);`, `
CREATE TABLE IF NOT EXISTS buyer_payment_methods (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  square_customer_id TEXT NOT NULL,
  square_card_id TEXT NOT NULL UNIQUE,
  card_brand TEXT,
  card_last4 TEXT,
  is_default BOOLEAN NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
}

// Open returns a private in-memory database with every settlement table.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_busy_timeout=5000", name, uuid.NewString()[:8])
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// One connection keeps every statement on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}
