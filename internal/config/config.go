// Package config предоставляет структуры и функции для парсинга и загрузки конфига.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	HTTPServer              `yaml:"http_server"`
	GRPCServer              `yaml:"grpc_server"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	Kafka                   `yaml:"kafka"`
	Wallet                  `yaml:"wallet"`
	Refund                  `yaml:"refund"`
	Scheduler               `yaml:"scheduler"`
	OrderLifecycle          `yaml:"order_lifecycle"`
	JWTToken                `yaml:"jwttoken"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"20"`
	RateBurst   int           `yaml:"rate_burst" env-default:"40"`
}

// GRPCServer содержит адрес gRPC health-сервера. Пустой адрес отключает сервер.
type GRPCServer struct {
	AddressGRPC string `yaml:"address"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ настройки подключения к брокеру.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
	Concurrency        int           `yaml:"concurrency" env-default:"10"`
}

// Kafka настройки продюсера событий заказов. Без брокеров события не публикуются.
type Kafka struct {
	Brokers          []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	OrderEventsTopic string   `yaml:"order_events_topic" env-default:"order-status-changed"`
}

// Wallet настройки HTTP-клиента сервиса кошельков.
type Wallet struct {
	WalletURL        string        `yaml:"url"`
	WalletTimeout    time.Duration `yaml:"timeout" env-default:"3s"`
	BreakerFailures  uint32        `yaml:"breaker_failures" env-default:"5"`
	BreakerOpenDelay time.Duration `yaml:"breaker_open_delay" env-default:"30s"`
}

// Refund выбирает транспорт уведомлений о возвратах: http, amqp или log.
type Refund struct {
	Transport string `yaml:"transport" env-default:"log"`
}

// Scheduler настройки фонового планировщика.
type Scheduler struct {
	Interval        time.Duration `yaml:"interval" env-default:"30s"`
	TickTimeout     time.Duration `yaml:"tick_timeout" env-default:"25s"`
	DistributedLock bool          `yaml:"distributed_lock"`
	LockTTL         time.Duration `yaml:"lock_ttl" env-default:"25s"`
}

// OrderLifecycle настройки жизненного цикла заказа.
type OrderLifecycle struct {
	StageDuration time.Duration `yaml:"stage_duration" env-default:"30s"`
	CacheTTL      time.Duration `yaml:"cache_ttl" env-default:"10m"`
}

// JWTToken структура для работы с jwt-токеном.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
// Перед чтением подхватывает переменные из .env, если файл есть.
func MustLoad() *Config {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла и переменных окружения.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}
