package config

import "time"

// ChatRelay definition chat_service YAML structure
type ChatRelay struct {
	Port string `mapstructure:"port"`

	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Relay      RelayConfig    `mapstructure:"relay"`
}

// RelayConfig definition relay worker setting
type RelayConfig struct {
	GroupName    string        `mapstructure:"group_name"`
	ConsumerName string        `mapstructure:"consumer_name"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchCount   int64         `mapstructure:"batch_count"`
	MaxStreamLen int64         `mapstructure:"max_stream_len"`
	RestoreCount int           `mapstructure:"restore_count"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	RedisDB int    `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}
