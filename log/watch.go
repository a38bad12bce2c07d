package log

import (
	"github.com/bronystylecrazy/tokenbus/config"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// WatchLevel keeps the atomic level in sync with log.level in the config file.
func WatchLevel(src *config.Source, level zap.AtomicLevel, logger *zap.Logger) {
	src.OnChange(func(v *viper.Viper) {
		next := ParseLevel(v.GetString("log.level"))
		if next == level.Level() {
			return
		}
		level.SetLevel(next)
		logger.Info("log level changed", zap.Stringer("level", next))
	})
}
