package config

import (
	"time"
)

// DatabaseConfig describes the Postgres store holding rides and payments.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:             getEnv("DATABASE_URL", ""),
		MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnectTimeout:  getEnvAsDuration("DATABASE_CONNECT_TIMEOUT", 10*time.Second),
		AutoMigrate:     getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
	}
}
