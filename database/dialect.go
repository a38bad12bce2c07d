package database

import (
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ParseDialect normalizes a configured dialect to the name goose expects.
func ParseDialect(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "", "postgresql":
		return "postgres"
	default:
		return strings.ToLower(strings.TrimSpace(d))
	}
}

func NewDialector(config Config) gorm.Dialector {
	switch ParseDialect(config.Dialect) {
	case "mysql":
		return mysql.Open(config.Datasource)
	case "sqlite3":
		return sqlite.Open(config.Datasource)
	default:
		return postgres.Open(config.Datasource)
	}
}
