package config

import (
	"strings"
	"time"
)

const (
	MpesaSandboxURL    = "https://sandbox.safaricom.co.ke"
	MpesaProductionURL = "https://api.safaricom.co.ke"
)

// MpesaConfig holds the Daraja STK push credentials.
type MpesaConfig struct {
	Environment       string        `yaml:"environment"` // sandbox or production
	BaseURL           string        `yaml:"base_url"`
	ConsumerKey       string        `yaml:"consumer_key"`
	ConsumerSecret    string        `yaml:"consumer_secret"`
	ShortCode         string        `yaml:"short_code"`
	PassKey           string        `yaml:"pass_key"`
	CallbackURL       string        `yaml:"callback_url"`
	TransactionType   string        `yaml:"transaction_type"`
	DefaultDesc       string        `yaml:"default_desc"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	TokenExpiryWindow time.Duration `yaml:"token_expiry_window"`
	ShareTokenInRedis bool          `yaml:"share_token_in_redis"`
	SendReceiptSMS    bool          `yaml:"send_receipt_sms"`

	// CallbackAllowedIPs restricts POST /payments/callback to these IPs or CIDRs. Empty allows all.
	CallbackAllowedIPs []string `yaml:"callback_allowed_ips"`
	MaxCallbackBytes   int64    `yaml:"max_callback_bytes"`
}

// ResolvedBaseURL honours MPESA_BASE_URL first, then the environment selector.
func (c *MpesaConfig) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if strings.EqualFold(c.Environment, "production") {
		return MpesaProductionURL
	}
	return MpesaSandboxURL
}

func loadMpesaConfig() *MpesaConfig {
	return &MpesaConfig{
		Environment:        getEnv("MPESA_ENV", "sandbox"),
		BaseURL:            getEnv("MPESA_BASE_URL", ""),
		ConsumerKey:        getEnv("MPESA_CONSUMER_KEY", ""),
		ConsumerSecret:     getEnv("MPESA_CONSUMER_SECRET", ""),
		ShortCode:          getEnv("MPESA_SHORTCODE", ""),
		PassKey:            getEnv("MPESA_PASSKEY", ""),
		CallbackURL:        getEnv("MPESA_CALLBACK_URL", ""),
		TransactionType:    getEnv("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
		DefaultDesc:        getEnv("MPESA_DEFAULT_DESC", ""),
		RequestTimeout:     getEnvAsDuration("MPESA_REQUEST_TIMEOUT", 30*time.Second),
		TokenExpiryWindow:  getEnvAsDuration("MPESA_TOKEN_EXPIRY_WINDOW", time.Minute),
		ShareTokenInRedis:  getEnvAsBool("MPESA_SHARE_TOKEN_IN_REDIS", true),
		SendReceiptSMS:     getEnvAsBool("MPESA_SEND_RECEIPT_SMS", false),
		CallbackAllowedIPs: getEnvAsSlice("MPESA_CALLBACK_ALLOWED_IPS", []string{}),
		MaxCallbackBytes:   int64(getEnvAsInt("MPESA_MAX_CALLBACK_BYTES", 64*1024)),
	}
}
