package database

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qs3c/qrcode_go_server/internal/model"
	"github.com/qs3c/qrcode_go_server/internal/pkg/publicid"
)

const backfillIDAttempts = 5

var migratedModels = []interface{}{&model.User{}, &model.QRCode{}, &model.Payment{}}

// Migrate 新表直接创建；已有表只补缺失的列，不改动旧列类型，回填后再补索引
func Migrate(db *gorm.DB, publicIDLength int) error {
	m := db.Migrator()
	for _, value := range migratedModels {
		if !m.HasTable(value) {
			if err := m.CreateTable(value); err != nil {
				return fmt.Errorf("db: create table: %w", err)
			}
			continue
		}
		if err := addMissingColumns(db, value); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	backfills := []struct {
		table string
		sql   string
		args  []interface{}
	}{
		{"users", "UPDATE users SET created_at = ? WHERE created_at IS NULL", []interface{}{now}},
		{"users", "UPDATE users SET updated_at = ? WHERE updated_at IS NULL", []interface{}{now}},
		{"users", "UPDATE users SET plan_cancelled = ? WHERE plan_cancelled IS NULL", []interface{}{false}},
		{"users", "UPDATE users SET is_admin = ? WHERE is_admin IS NULL", []interface{}{false}},
		{"qr_codes", "UPDATE qr_codes SET created_at = ? WHERE created_at IS NULL", []interface{}{now}},
		{"qr_codes", "UPDATE qr_codes SET data_type = ? WHERE data_type IS NULL OR data_type = ''", []interface{}{model.DataTypeURL}},
	}
	for _, b := range backfills {
		res := db.Exec(b.sql, b.args...)
		if res.Error != nil {
			return fmt.Errorf("db: backfill %s: %w", b.table, res.Error)
		}
		if res.RowsAffected > 0 {
			log.WithField("table", b.table).Infof("Backfilled %d rows", res.RowsAffected)
		}
	}

	if err := backfillPublicIDs(db, publicIDLength); err != nil {
		return err
	}

	for _, value := range migratedModels {
		if err := addMissingIndexes(db, value); err != nil {
			return err
		}
	}
	return nil
}

func addMissingColumns(db *gorm.DB, value interface{}) error {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(value); err != nil {
		return fmt.Errorf("db: parse model: %w", err)
	}

	m := db.Migrator()
	for _, field := range stmt.Schema.Fields {
		if field.DBName == "" || m.HasColumn(value, field.DBName) {
			continue
		}
		if err := m.AddColumn(value, field.Name); err != nil {
			return fmt.Errorf("db: add column %s.%s: %w", stmt.Schema.Table, field.DBName, err)
		}
		log.WithField("table", stmt.Schema.Table).Infof("Added column %s", field.DBName)
	}
	return nil
}

func addMissingIndexes(db *gorm.DB, value interface{}) error {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(value); err != nil {
		return fmt.Errorf("db: parse model: %w", err)
	}

	m := db.Migrator()
	for _, idx := range stmt.Schema.ParseIndexes() {
		if m.HasIndex(value, idx.Name) {
			continue
		}
		if err := m.CreateIndex(value, idx.Name); err != nil {
			return fmt.Errorf("db: create index %s: %w", idx.Name, err)
		}
	}
	return nil
}

// backfillPublicIDs 为没有公开 ID 的旧二维码生成 ID
func backfillPublicIDs(db *gorm.DB, length int) error {
	var ids []int64
	if err := db.Model(&model.QRCode{}).Where("public_id IS NULL OR public_id = ''").Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("db: list codes without public id: %w", err)
	}

	for _, id := range ids {
		assigned := false
		for attempt := 0; attempt < backfillIDAttempts && !assigned; attempt++ {
			pid, err := publicid.New(length)
			if err != nil {
				return err
			}
			var count int64
			if err := db.Model(&model.QRCode{}).Where("public_id = ?", pid).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if err := db.Model(&model.QRCode{}).Where("id = ?", id).Update("public_id", pid).Error; err != nil {
				return fmt.Errorf("db: backfill public id for %d: %w", id, err)
			}
			assigned = true
		}
		if !assigned {
			return fmt.Errorf("db: could not assign unique public id to qr code %d", id)
		}
	}

	if len(ids) > 0 {
		log.Infof("Backfilled public ids for %d qr codes", len(ids))
	}
	return nil
}
