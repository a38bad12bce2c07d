package database

import (
	"fmt"

	"github.com/bronystylecrazy/tokenbus/otel"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"
)

// UseOtel attaches span and metric instrumentation to every query.
func UseOtel(db *gorm.DB, config otel.Config, tp *otel.TracerProvider) error {
	if !config.Enabled {
		return nil
	}
	if err := db.Use(otelgorm.NewPlugin(otelgorm.WithTracerProvider(tp))); err != nil {
		return fmt.Errorf("database: gorm otel plugin: %w", err)
	}
	return nil
}
