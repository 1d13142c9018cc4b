package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMySQL = "mysql"
	BackendMongo = "mongo"
)

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Store      string           `yaml:"store"`
	MySQL      MySQLConfig      `yaml:"mysql"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Redis      RedisConfig      `yaml:"redis"`
	MetalPrice MetalPriceConfig `yaml:"metal_price"`
	Payment    PaymentConfig    `yaml:"payment"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Log        LogConfig        `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MetalPriceConfig struct {
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	BaseCurrency     string        `yaml:"base_currency"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
}

// PaymentConfig holds the payment gateway's shared secret. ConfirmPayment is
// refused on both transports while CallbackToken is empty.
type PaymentConfig struct {
	CallbackToken string `yaml:"callback_token"`
}

type JobsConfig struct {
	PriceRecalcInterval time.Duration `yaml:"price_recalc_interval"`
	UserCleanupInterval time.Duration `yaml:"user_cleanup_interval"`
	DistributedLock     bool          `yaml:"distributed_lock"`
}

type AlertsConfig struct {
	KafkaBrokers   []string `yaml:"kafka_brokers"`
	KafkaTopic     string   `yaml:"kafka_topic"`
	SendGridAPIKey string   `yaml:"sendgrid_api_key"`
	EmailFrom      string   `yaml:"email_from"`
	EmailTo        string   `yaml:"email_to"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			RequestTimeout:  10 * time.Second,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		GRPC:  GRPCConfig{Addr: ":50051"},
		Store: BackendMySQL,
		MySQL: MySQLConfig{
			DSN: "root:root@tcp(localhost:3306)/jewelstore?parseTime=true&multiStatements=true",
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017/?replicaSet=rs0",
			Database: "jewelstore",
		},
		Redis: RedisConfig{Addr: "localhost:6379", PoolSize: 100},
		MetalPrice: MetalPriceConfig{
			BaseURL:          "https://api.metalpriceapi.com/v1",
			BaseCurrency:     "INR",
			Timeout:          5 * time.Second,
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
			CacheTTL:         600 * time.Second,
		},
		Jobs: JobsConfig{
			PriceRecalcInterval: time.Hour,
			UserCleanupInterval: 24 * time.Hour,
			DistributedLock:     true,
		},
		Alerts: AlertsConfig{KafkaTopic: "ops-alerts"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if set), then environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.Payment.CallbackToken = getEnv("PAYMENT_CALLBACK_TOKEN", c.Payment.CallbackToken)
	c.GRPC.Addr = getEnv("GRPC_ADDR", c.GRPC.Addr)
	c.Store = strings.ToLower(getEnv("STORE_BACKEND", c.Store))
	c.MySQL.DSN = getEnv("MYSQL_DSN", c.MySQL.DSN)
	c.Mongo.URI = getEnv("MONGO_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGO_DATABASE", c.Mongo.Database)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.MetalPrice.BaseURL = getEnv("METAL_PRICE_URL", c.MetalPrice.BaseURL)
	c.MetalPrice.APIKey = getEnv("METAL_PRICE_API_KEY", c.MetalPrice.APIKey)
	c.MetalPrice.BaseCurrency = getEnv("METAL_PRICE_CURRENCY", c.MetalPrice.BaseCurrency)
	c.Alerts.KafkaTopic = getEnv("ALERT_KAFKA_TOPIC", c.Alerts.KafkaTopic)
	c.Alerts.SendGridAPIKey = getEnv("SENDGRID_API_KEY", c.Alerts.SendGridAPIKey)
	c.Alerts.EmailFrom = getEnv("ALERT_EMAIL_FROM", c.Alerts.EmailFrom)
	c.Alerts.EmailTo = getEnv("ALERT_EMAIL_TO", c.Alerts.EmailTo)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	if brokers := getEnv("ALERT_KAFKA_BROKERS", ""); brokers != "" {
		c.Alerts.KafkaBrokers = splitList(brokers)
	}

	var err error
	if c.Redis.DB, err = getEnvInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	if c.Jobs.PriceRecalcInterval, err = getEnvDuration("PRICE_RECALC_INTERVAL", c.Jobs.PriceRecalcInterval); err != nil {
		return err
	}
	if c.Jobs.UserCleanupInterval, err = getEnvDuration("USER_CLEANUP_INTERVAL", c.Jobs.UserCleanupInterval); err != nil {
		return err
	}
	if c.MetalPrice.CacheTTL, err = getEnvDuration("METAL_RATE_TTL", c.MetalPrice.CacheTTL); err != nil {
		return err
	}
	if c.HTTP.RequestTimeout, err = getEnvDuration("HTTP_REQUEST_TIMEOUT", c.HTTP.RequestTimeout); err != nil {
		return err
	}
	if c.Jobs.DistributedLock, err = getEnvBool("JOB_DISTRIBUTED_LOCK", c.Jobs.DistributedLock); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case BackendMySQL:
		if c.MySQL.DSN == "" {
			errs = append(errs, errors.New("mysql dsn is required"))
		}
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			errs = append(errs, errors.New("mongo uri and database are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store))
	}
	if c.Jobs.PriceRecalcInterval <= 0 {
		errs = append(errs, errors.New("price recalculation interval must be positive"))
	}
	if c.Jobs.UserCleanupInterval <= 0 {
		errs = append(errs, errors.New("user cleanup interval must be positive"))
	}
	if c.MetalPrice.CacheTTL <= 0 {
		errs = append(errs, errors.New("metal rate cache ttl must be positive"))
	}
	if c.Alerts.SendGridAPIKey != "" && (c.Alerts.EmailFrom == "" || c.Alerts.EmailTo == "") {
		errs = append(errs, errors.New("alert email from/to are required with a sendgrid key"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
