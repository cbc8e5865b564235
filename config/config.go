package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Direct debit gateway.
	DirectDebitAPIURL          string `mapstructure:"DIRECT_DEBIT_API_URL"`
	DirectDebitUsername        string `mapstructure:"DIRECT_DEBIT_USERNAME"`
	DirectDebitPassword        string `mapstructure:"DIRECT_DEBIT_PASSWORD"`
	DirectDebitTimeoutSeconds  int    `mapstructure:"DIRECT_DEBIT_TIMEOUT_SECONDS"`
	DirectDebitWebhookSecret   string `mapstructure:"DIRECT_DEBIT_WEBHOOK_SECRET"`
	DirectDebitSignatureHeader string `mapstructure:"DIRECT_DEBIT_SIGNATURE_HEADER"`
	WebhookProcessTimeoutSecs  int    `mapstructure:"WEBHOOK_PROCESS_TIMEOUT_SECONDS"`

	// Card payments and invoicing.
	StripeKey      string `mapstructure:"STRIPE_KEY"`
	InvoiceHookURL string `mapstructure:"INVOICE_HOOK_URL"`

	// Rental policy.
	Currency      string `mapstructure:"CURRENCY"`
	MinRentalDays int    `mapstructure:"MIN_RENTAL_DAYS"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "fleetrent")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("DIRECT_DEBIT_API_URL", "https://api.payadvantage.com.au")
	viper.SetDefault("DIRECT_DEBIT_USERNAME", "")
	viper.SetDefault("DIRECT_DEBIT_PASSWORD", "")
	viper.SetDefault("DIRECT_DEBIT_TIMEOUT_SECONDS", 15)
	viper.SetDefault("DIRECT_DEBIT_WEBHOOK_SECRET", "")
	viper.SetDefault("DIRECT_DEBIT_SIGNATURE_HEADER", "X-PayAdvantage-Signature")
	viper.SetDefault("WEBHOOK_PROCESS_TIMEOUT_SECONDS", 60)
	viper.SetDefault("STRIPE_KEY", "")
	viper.SetDefault("INVOICE_HOOK_URL", "")
	viper.SetDefault("CURRENCY", "AUD")
	viper.SetDefault("MIN_RENTAL_DAYS", 1)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
