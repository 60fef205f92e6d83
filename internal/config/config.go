package config

import (
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env       string    `yaml:"env" env:"ENV" env-default:"production"`
	Bot       Bot       `yaml:"bot"`
	Gateway   Gateway   `yaml:"gateway"`
	Panel     Panel     `yaml:"panel"`
	Plan      Plan      `yaml:"plan"`
	Storage   Storage   `yaml:"storage"`
	Redis     Redis     `yaml:"redis"`
	Kafka     Kafka     `yaml:"kafka"`
	HTTP      HTTP      `yaml:"http"`
	Telemetry Telemetry `yaml:"telemetry"`
}

type Bot struct {
	Token string `yaml:"token" env:"BOT_TOKEN" env-required:"true"`
	Name  string `yaml:"name" env:"BOT_NAME" env-default:"VPN Bot"`
	// WebhookURL doubles as the payment return target; when empty the bot
	// falls back to its public t.me link.
	WebhookURL string `yaml:"webhook_url" env:"BOT_WEBHOOK_URL"`
}

type Gateway struct {
	BaseURL   string `yaml:"base_url" env:"YOOKASSA_BASE_URL" env-default:"https://api.yookassa.ru/v3"`
	ShopID    string `yaml:"shop_id" env:"YOOKASSA_SHOP_ID" env-required:"true"`
	SecretKey string `yaml:"secret_key" env:"YOOKASSA_SECRET_KEY" env-required:"true"`
}

type Panel struct {
	BaseURL   string `yaml:"base_url" env:"PANEL_BASE_URL" env-required:"true"`
	APIKey    string `yaml:"api_key" env:"PANEL_API_KEY" env-required:"true"`
	InboundID int    `yaml:"inbound_id" env:"PANEL_INBOUND_ID" env-required:"true"`
}

type Plan struct {
	Price     string `yaml:"price" env:"PLAN_PRICE" env-required:"true"`
	Currency  string `yaml:"currency" env:"PLAN_CURRENCY" env-default:"RUB"`
	DaysValid int    `yaml:"days_valid" env:"PLAN_DAYS_VALID" env-default:"30"`
	TrafficGB int    `yaml:"traffic_gb" env:"PLAN_TRAFFIC_GB" env-default:"10"`
}

type Storage struct {
	// Backend selects the transaction store: "file" or "postgres".
	Backend     string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"file"`
	Path        string `yaml:"path" env:"STORAGE_PATH" env-default:"data/transactions.json"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
}

type Redis struct {
	// Addr enables the Redis transaction lock; empty means in-process locking.
	Addr string `yaml:"addr" env:"REDIS_ADDR"`
}

type Kafka struct {
	// Brokers enables transition event publishing; empty disables it.
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"purchase.state.changed"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8082"`
}

type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
}

func MustLoad() *Config {
	var cfg Config

	configPath := os.Getenv("VPNBOT_CONFIG_PATH")
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			log.Fatalf("failed to find config file: %v", err)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			log.Fatalf("failed to read config file: %v", err)
		}
		return &cfg
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to read config from environment: %v", err)
	}
	return &cfg
}
