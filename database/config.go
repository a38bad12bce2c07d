package database

type Config struct {
	Dialect    string `mapstructure:"dialect" default:"sqlite" validate:"oneof=postgres postgresql mysql sqlite sqlite3"`
	Datasource string `mapstructure:"datasource" default:"file:tokenbus.db?cache=shared"`
	Migrate    bool   `mapstructure:"migrate" default:"true"`
}
