package database

import (
	"fmt"
	"time"

	"exam_prep_backend/internal/config"
	"exam_prep_backend/internal/model"
	applog "exam_prep_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=UTC",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	level := logger.Warn
	if mode == "debug" {
		level = logger.Info
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
		// maps duplicate-key errors to gorm.ErrDuplicatedKey
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	applog.Log.Info("Database connection established", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
	return db, nil
}

// Migrate creates or updates the tables this service owns, plus the quiz
// catalog tables it reads.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Quiz{},
		&model.QuizQuestion{},
		&model.Attempt{},
		&model.ViolationRecord{},
	)
	if err != nil {
		return err
	}
	applog.Log.Info("Database migration completed")
	return nil
}
