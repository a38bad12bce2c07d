package revocation

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDatabase = "database"
	BackendDynamo   = "dynamodb"
)

type Config struct {
	Backend   string `mapstructure:"backend" default:"memory" validate:"oneof=memory redis database dynamodb"`
	KeyPrefix string `mapstructure:"key_prefix" default:"tokenbus:revoked"`
	// SweepSchedule is a cron spec; empty disables the sweeper.
	SweepSchedule string       `mapstructure:"sweep_schedule"`
	Dynamo        DynamoConfig `mapstructure:"dynamodb"`
}

type DynamoConfig struct {
	Table string `mapstructure:"table" default:"tokenbus-revoked"`
	// CreateTable creates the table with TTL enabled on start.
	CreateTable bool `mapstructure:"create_table" default:"true"`
}
