package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/pokerjest/mediasorter/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (creating if needed) the sqlite database at storagePath and migrates it.
// ":memory:" opens a private in-memory database.
func Open(storagePath string) (*gorm.DB, error) {
	if storagePath != ":memory:" {
		// 确保存储目录存在
		if err := os.MkdirAll(filepath.Dir(storagePath), 0755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	gdb, err := gorm.Open(sqlite.Open(storagePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// in-memory sqlite is per connection
	if storagePath == ":memory:" {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	// 自动迁移模式
	if err := gdb.AutoMigrate(&model.GlobalConfig{}, &model.AliasOverride{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return gdb, nil
}

// Close closes the underlying connection pool.
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
