package config

import (
	"time"
)

// KafkaConfig controls publishing of payment.resolved events. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	ClientID     string        `yaml:"client_id"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RequiredAcks int           `yaml:"required_acks"`
}

func (c *KafkaConfig) Enabled() bool {
	return c != nil && len(c.Brokers) > 0
}

func loadKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers:      getEnvAsSlice("KAFKA_BROKERS", []string{}),
		Topic:        getEnv("KAFKA_PAYMENT_TOPIC", "payments.resolved"),
		ClientID:     getEnv("KAFKA_CLIENT_ID", "goride-payments"),
		BatchTimeout: getEnvAsDuration("KAFKA_BATCH_TIMEOUT", 50*time.Millisecond),
		WriteTimeout: getEnvAsDuration("KAFKA_WRITE_TIMEOUT", 10*time.Second),
		RequiredAcks: getEnvAsInt("KAFKA_REQUIRED_ACKS", -1),
	}
}
