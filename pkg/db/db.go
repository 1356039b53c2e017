package db

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/docvault/ingest-backend/config"
)

var db *gorm.DB
var once sync.Once

// GetSharedConnection returns the process-wide gorm connection, opening it on
// first use with the pool settings from the database configuration.
func GetSharedConnection() *gorm.DB {
	once.Do(func() {
		databaseConfig := config.Config.Database
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=%s",
			databaseConfig.Host,
			databaseConfig.Username,
			databaseConfig.Password,
			databaseConfig.Name,
			databaseConfig.Port,
			databaseConfig.TimeZone,
		)

		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			QueryFields: true,
			Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			log.Fatalf("failed to open database connection: %v", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("failed to access database pool: %v", err)
		}
		sqlDB.SetMaxIdleConns(databaseConfig.Pool.IdleConnections)
		sqlDB.SetMaxOpenConns(databaseConfig.Pool.MaxConnections)
		if databaseConfig.Pool.ConnLifeTime > 0 {
			sqlDB.SetConnMaxLifetime(databaseConfig.Pool.ConnLifeTime)
		} else {
			sqlDB.SetConnMaxLifetime(30 * time.Minute)
		}
	})
	return db
}

// Close closes the underlying sql.DB of a gorm connection.
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}
