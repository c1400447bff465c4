// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/magabrotheeeer/abo-portal/internal/models"
)

// Config общая структура для хранения настроек
type Config struct {
	Env             string `yaml:"env" env-default:"local"`
	Storage         `yaml:"storage"`
	RedisConnection `yaml:"redis_connection"`
	HTTPServer      `yaml:"http_server"`
	JWTToken        `yaml:"jwttoken"`
	Operator        `yaml:"operator"`
	Notification    `yaml:"notification"`
	Plans           []models.Plan `yaml:"plans"`
}

// Storage структура для выбора хранилища ключ-значение: memory, file или redis
type Storage struct {
	Backend   string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"memory"`
	FilePath  string `yaml:"file_path" env-default:"data/portal.json"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	LoginRate   float64       `yaml:"login_rate" env-default:"1"`
	LoginBurst  int           `yaml:"login_burst" env-default:"5"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Operator структура с данными оператора портала: адрес для заявок и bcrypt-хэш PIN
type Operator struct {
	Email   string `yaml:"email" env-default:"operator@example.com"`
	PinHash string `yaml:"pin_hash" env:"OPERATOR_PIN_HASH"`
}

// Notification структура для настройки исходящей доставки уведомлений: log, rabbitmq или smtp
type Notification struct {
	Composer   string `yaml:"composer" env-default:"log"`
	AMQPURL    string `yaml:"amqp_url" env:"AMQP_URL"`
	Exchange   string `yaml:"exchange" env-default:"notifications"`
	RoutingKey string `yaml:"routing_key" env-default:"outbound"`
	SMTPHost   string `yaml:"smtp_host"`
	SMTPPort   string `yaml:"smtp_port" env-default:"587"`
	SMTPUser   string `yaml:"smtp_user"`
	SMTPPass   string `yaml:"smtp_pass" env:"SMTP_PASS"`
}

// Load читает конфиг из файла path, переменные окружения имеют приоритет.
// Если тарифы не заданы, подставляется каталог по умолчанию.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(cfg.Plans) == 0 {
		cfg.Plans = models.DefaultPlans()
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH
func MustLoad() *Config {
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

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Storage:\n"+
			"  Backend: %s\n"+
			"  FilePath: %s\n"+
			"  KeyPrefix: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Operator:\n"+
			"  Email: %s\n"+
			"Notification:\n"+
			"  Composer: %s\n"+
			"Plans: %d\n",
		c.Env,
		c.Backend,
		c.FilePath,
		c.KeyPrefix,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.Operator.Email,
		c.Composer,
		len(c.Plans),
	)
}
