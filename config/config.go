package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"farewatch"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"farewatch"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"fw"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// 行情提供商配置
	// 注意：mock 仅用于本地开发和测试环境
	FlightProvider string `env:"FLIGHT_PROVIDER" envDefault:"amadeus"` // amadeus, kiwi, mock
	HotelProvider  string `env:"HOTEL_PROVIDER" envDefault:"amadeus"`  // amadeus, mock

	AmadeusBaseURL   string `env:"AMADEUS_BASE_URL" envDefault:"https://test.api.amadeus.com"`
	AmadeusAPIKey    string `env:"AMADEUS_API_KEY"`
	AmadeusAPISecret string `env:"AMADEUS_API_SECRET"`

	KiwiBaseURL string `env:"KIWI_BASE_URL" envDefault:"https://api.tequila.kiwi.com"`
	KiwiAPIKey  string `env:"KIWI_API_KEY"`

	// 价格抓取重试策略
	FetchMaxAttempts    int `env:"FETCH_MAX_ATTEMPTS" envDefault:"3"`
	FetchAttemptTimeout int `env:"FETCH_ATTEMPT_TIMEOUT_SECONDS" envDefault:"60"`
	FetchBackoffBaseMs  int `env:"FETCH_BACKOFF_BASE_MS" envDefault:"500"`

	// 全量刷新配置
	RefreshLockTTLMinutes  int `env:"REFRESH_LOCK_TTL_MINUTES" envDefault:"30"`
	RefreshConcurrency     int `env:"REFRESH_CONCURRENCY" envDefault:"4"`
	RefreshIntervalMinutes int `env:"REFRESH_INTERVAL_MINUTES" envDefault:"30"`

	// worker 优雅退出宽限期
	ShutdownGraceSeconds int `env:"SHUTDOWN_GRACE_SECONDS" envDefault:"30"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪与指标配置
	OTelEnabled  bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4317"`
	OTelSampler  float64 `env:"OTEL_SAMPLER" envDefault:"0.1"`
}

func init() {

	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}

	validateConfig()
}

func validateConfig() {
	if Cfg.FlightProvider == "amadeus" || Cfg.HotelProvider == "amadeus" {
		if Cfg.AmadeusAPIKey == "" || Cfg.AmadeusAPISecret == "" {
			log.Printf("WARN: AMADEUS_API_KEY / AMADEUS_API_SECRET not set, Amadeus provider will not work")
		}
	}

	if Cfg.FlightProvider == "kiwi" && Cfg.KiwiAPIKey == "" {
		log.Printf("WARN: KIWI_API_KEY is not set, Kiwi provider will not work")
	}

	if Cfg.FetchMaxAttempts < 1 {
		log.Fatal("FETCH_MAX_ATTEMPTS must be at least 1")
	}

	if Cfg.RefreshLockTTLMinutes < 1 {
		log.Fatal("REFRESH_LOCK_TTL_MINUTES must be at least 1")
	}
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
