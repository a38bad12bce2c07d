package database

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewGormDB(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Discard,
	})
}

func GormCheck(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("database init failed", zap.Error(err))
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Error("database unreachable", zap.Error(err))
		return err
	}
	log.Debug("database connection successful")
	return nil
}

func registerDB(lc fx.Lifecycle, cfg Config, db *gorm.DB, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := GormCheck(ctx, db, log); err != nil {
				return err
			}
			if !cfg.Migrate {
				log.Info("skipping migrations")
				return nil
			}
			return Migrate(cfg, db)
		},
		OnStop: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
}
