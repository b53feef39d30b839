package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qs3c/qrcode_go_server/config"
	"github.com/qs3c/qrcode_go_server/internal/model"
	"github.com/qs3c/qrcode_go_server/internal/pkg/publicid"
)

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestMigrate_FreshDatabase(t *testing.T) {
	db := openMemory(t)

	require.NoError(t, Migrate(db, 8))

	for _, table := range []string{"users", "qr_codes", "payments"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	for _, column := range []string{"upgrade_method", "paypal_subscription_id", "stripe_subscription_id", "plan_expires_at", "plan_cancelled", "is_admin"} {
		assert.True(t, db.Migrator().HasColumn("users", column), column)
	}
}

func TestMigrate_AddsColumnsToLegacyTables(t *testing.T) {
	db := openMemory(t)

	require.NoError(t, db.Exec(`
		CREATE TABLE users (
			id integer primary key autoincrement,
			username text not null,
			name text,
			email text not null,
			password text not null,
			plan text
		)
	`).Error)
	require.NoError(t, db.Exec(`
		CREATE TABLE qr_codes (
			id integer primary key autoincrement,
			user_id integer,
			payload text not null,
			png_path text,
			jpg_path text,
			svg_path text
		)
	`).Error)
	require.NoError(t, db.Exec(`INSERT INTO users (username, name, email, password, plan) VALUES ('alice', 'Alice', 'alice@example.com', 'hash', 'pro')`).Error)
	require.NoError(t, db.Exec(`INSERT INTO qr_codes (user_id, payload, png_path, jpg_path, svg_path) VALUES (1, 'https://example.com', 'a.png', 'a.jpg', 'a.svg')`).Error)
	require.NoError(t, db.Exec(`INSERT INTO qr_codes (user_id, payload, png_path, jpg_path, svg_path) VALUES (1, 'hello', 'b.png', 'b.jpg', 'b.svg')`).Error)

	require.NoError(t, Migrate(db, 8))

	for _, column := range []string{"upgrade_method", "stripe_subscription_id", "plan_expires_at", "plan_cancelled", "created_at"} {
		assert.True(t, db.Migrator().HasColumn("users", column), column)
	}
	for _, column := range []string{"public_id", "data_type", "created_at"} {
		assert.True(t, db.Migrator().HasColumn("qr_codes", column), column)
	}

	var user model.User
	require.NoError(t, db.First(&user).Error)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "pro", user.Plan)
	assert.False(t, user.PlanCancelled)
	assert.False(t, user.CreatedAt.IsZero())

	var codes []model.QRCode
	require.NoError(t, db.Order("id").Find(&codes).Error)
	require.Len(t, codes, 2)
	for _, code := range codes {
		require.NotNil(t, code.PublicID)
		assert.Len(t, *code.PublicID, 8)
		assert.True(t, publicid.Valid(*code.PublicID))
		assert.Equal(t, model.DataTypeURL, code.DataType)
		assert.False(t, code.CreatedAt.IsZero())
	}
	assert.NotEqual(t, *codes[0].PublicID, *codes[1].PublicID)
	assert.Equal(t, "a.png", codes[0].PNGPath)

	// 旧列保持原有声明，不重建表
	columns, err := db.Migrator().ColumnTypes("users")
	require.NoError(t, err)
	for _, c := range columns {
		if c.Name() == "username" {
			assert.True(t, strings.EqualFold("text", c.DatabaseTypeName()), c.DatabaseTypeName())
		}
	}
	assert.True(t, db.Migrator().HasIndex(&model.QRCode{}, "idx_qr_codes_public_id"))
	assert.True(t, db.Migrator().HasIndex(&model.User{}, "idx_users_username"))
	assert.True(t, db.Migrator().HasTable(&model.Payment{}))

	// 再次迁移不报错，数据不变
	require.NoError(t, Migrate(db, 8))
	var again []model.QRCode
	require.NoError(t, db.Order("id").Find(&again).Error)
	require.Len(t, again, 2)
	assert.Equal(t, *codes[0].PublicID, *again[0].PublicID)
}

func TestMigrate_LegacyDuplicatePublicIDSlotsStayUnique(t *testing.T) {
	db := openMemory(t)

	require.NoError(t, db.Exec(`
		CREATE TABLE qr_codes (
			id integer primary key autoincrement,
			user_id integer,
			payload text not null
		)
	`).Error)
	for i := 0; i < 20; i++ {
		require.NoError(t, db.Exec(`INSERT INTO qr_codes (user_id, payload) VALUES (1, 'x')`).Error)
	}

	require.NoError(t, Migrate(db, 8))

	var distinct int64
	require.NoError(t, db.Model(&model.QRCode{}).Distinct("public_id").Count(&distinct).Error)
	assert.Equal(t, int64(20), distinct)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openMemory(t)

	require.NoError(t, Migrate(db, 8))
	require.NoError(t, db.Create(&model.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", Plan: "basic"}).Error)
	require.NoError(t, Migrate(db, 8))

	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDialectorFor_UnsupportedDriver(t *testing.T) {
	_, err := dialectorFor(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
