package database

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"flowreplay/internal/config"
	"flowreplay/internal/models"
)

var DB *gorm.DB

func InitDatabase(cfg *config.Config) error {
	var err error

	dsn := cfg.GetDSN()

	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	zap.L().Info("database connected", zap.String("db", cfg.Database.Database))

	return AutoMigrate()
}

func AutoMigrate() error {
	err := DB.AutoMigrate(
		&models.Project{},
		&models.Environment{},
		&models.Flow{},
		&models.FlowSuite{},
		&models.FlowExecution{},
		&models.RunCheckpoint{},
	)

	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	zap.L().Info("database migration completed")

	return SeedDefaultData()
}

func SeedDefaultData() error {
	environments := []models.Environment{
		{
			Name:        "Test Environment",
			Description: "Testing environment for development",
			BaseURL:     "https://test.example.com",
			Type:        "test",
			Variables:   `{"timeout": 30000}`,
			Status:      1,
		},
		{
			Name:        "Production Environment",
			Description: "Production environment",
			BaseURL:     "https://www.example.com",
			Type:        "product",
			Variables:   `{"timeout": 10000}`,
			Status:      1,
		},
	}

	for _, env := range environments {
		var existing models.Environment
		if err := DB.Where("name = ? AND type = ?", env.Name, env.Type).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if err := DB.Create(&env).Error; err != nil {
					return fmt.Errorf("failed to create environment %s: %w", env.Name, err)
				}
			}
		}
	}

	return nil
}
