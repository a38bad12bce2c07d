package log

type Config struct {
	Level  string   `mapstructure:"level" default:"info" validate:"omitempty,oneof=debug info warn error fatal"`
	Format string   `mapstructure:"format" default:"auto" validate:"omitempty,oneof=auto console json"`
	Redact []string `mapstructure:"redact" default:"credential,token,authorization"`
}
