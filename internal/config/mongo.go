package config

import (
	"time"
)

// MongoConfig is optional. An empty URI disables the callback audit log.
type MongoConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	MaxPoolSize    int           `yaml:"max_pool_size"`
	MinPoolSize    int           `yaml:"min_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SocketTimeout  time.Duration `yaml:"socket_timeout"`
	AuthSource     string        `yaml:"auth_source"`
}

func (c *MongoConfig) Enabled() bool {
	return c != nil && c.URI != ""
}

func loadMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:            getEnv("MONGODB_URI", ""),
		Database:       getEnv("MONGODB_DATABASE", "goride_payments"),
		Username:       getEnv("MONGODB_USERNAME", ""),
		Password:       getEnv("MONGODB_PASSWORD", ""),
		MaxPoolSize:    getEnvAsInt("MONGODB_MAX_POOL_SIZE", 50),
		MinPoolSize:    getEnvAsInt("MONGODB_MIN_POOL_SIZE", 2),
		ConnectTimeout: getEnvAsDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
		SocketTimeout:  getEnvAsDuration("MONGODB_SOCKET_TIMEOUT", 30*time.Second),
		AuthSource:     getEnv("MONGODB_AUTH_SOURCE", "admin"),
	}
}
