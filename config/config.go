package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config содержит все настройки коннектора
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
	}

	Redis struct {
		Host              string
		Port              int
		Password          string
		DB                int
		PoolSize          int
		MinIdleConns      int
		ConnectTimeout    time.Duration
		ReadTimeout       time.Duration
		WriteTimeout      time.Duration
		DefaultExpiration time.Duration // срок действия кэша по умолчанию
	}

	Kafka struct {
		Brokers         []string      `mapstructure:"brokers"`
		GroupID         string        `mapstructure:"group_id"`
		OrderTopic      string        `mapstructure:"order_topic"`
		StockTopic      string        `mapstructure:"stock_topic"`
		SessionTimeout  time.Duration `mapstructure:"session_timeout"`
		FlushTimeout    time.Duration `mapstructure:"flush_timeout"`
		CompressionType string        `mapstructure:"compression_type"`
	}

	// Mms описывает подключение к REST API маркетплейса
	Mms struct {
		BaseURL string
		AppID   string
		// AppKey — секрет подписи в base64, как его выдает кабинет маркетплейса
		AppKey string
		// MarketplaceID — идентификатор площадки в запросах к API
		MarketplaceID string
		Timeout       time.Duration
	}

	// Sync управляет циклом выгрузки заказов
	Sync struct {
		Interval                 time.Duration
		StoreID                  string
		InitialSinceID           int64
		EmailDomain              string // домен синтетических email покупателей
		CycleLockTTL             time.Duration
		ShippableStatuses        []string
		ExcludedStatuses         []string
		FirstRunExcludedStatuses []string
	}

	// Stock управляет выгрузкой остатков на маркетплейс
	Stock struct {
		Enabled             bool
		BundleSeparator     string // разделитель составного SKU
		MultiplierAttribute string // атрибут продукта со списком множителей
	}

	Metrics struct {
		Enabled  bool
		Endpoint string
	}

	Security struct {
		JWTSecret        string
		JWTExpirationMin time.Duration
	}
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	var cfg Config

	// Настройка Viper
	viper.SetConfigName(configFile)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Чтение конфигурационного файла
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// Продолжаем, если файл не найден, будем использовать только переменные окружения
	}

	// Установка значений по умолчанию
	setDefaults()

	// Привязка переменных окружения
	bindEnvVariables()

	// Чтение конфигурации в структуру
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	// Получаем окружение
	cfg.ENV = viper.GetString("env")
	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	return &cfg, nil
}

// Validate проверяет обязательные реквизиты подключения к маркетплейсу.
// Вызывается при старте: без них ни один подписанный запрос не уйдет.
func (c *Config) Validate() error {
	if c.Mms.BaseURL == "" {
		return fmt.Errorf("mms.baseURL is required")
	}
	if c.Mms.AppID == "" {
		return fmt.Errorf("mms.appID is required")
	}
	if c.Mms.AppKey == "" {
		return fmt.Errorf("mms.appKey is required")
	}
	return nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults() {
	// Основные настройки
	viper.SetDefault("appName", "mms-connector")
	viper.SetDefault("version", "1.0.0")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("env", "development")

	// Настройки сервера
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", "10s")
	viper.SetDefault("server.writeTimeout", "10s")
	viper.SetDefault("server.shutdownTimeout", "5s")

	// Настройки Postgres
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.dbname", "postgres")
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("postgres.timeout", "5s")
	viper.SetDefault("postgres.poolSize", 10)

	// Настройки Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolSize", 10)
	viper.SetDefault("redis.minIdleConns", 2)
	viper.SetDefault("redis.connectTimeout", "1s")
	viper.SetDefault("redis.readTimeout", "1s")
	viper.SetDefault("redis.writeTimeout", "1s")
	viper.SetDefault("redis.defaultExpiration", "10m")

	// Настройки Kafka
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.groupID", "mms-connector")
	viper.SetDefault("kafka.orderTopic", "mms.orders")
	viper.SetDefault("kafka.stockTopic", "mms.stock")
	viper.SetDefault("kafka.sessionTimeout", "10s")
	viper.SetDefault("kafka.flushTimeout", "5s")
	viper.SetDefault("kafka.compressionType", "snappy")

	// Настройки подключения к маркетплейсу
	viper.SetDefault("mms.baseURL", "")
	viper.SetDefault("mms.appID", "")
	viper.SetDefault("mms.appKey", "")
	viper.SetDefault("mms.marketplaceID", "tmall")
	viper.SetDefault("mms.timeout", "30s")

	// Настройки цикла синхронизации заказов
	viper.SetDefault("sync.interval", "5m")
	viper.SetDefault("sync.storeID", "1")
	viper.SetDefault("sync.initialSinceID", 1)
	viper.SetDefault("sync.emailDomain", "example.com")
	viper.SetDefault("sync.cycleLockTTL", "10m")
	viper.SetDefault("sync.shippableStatuses", []string{
		"paid", "partially_shipped", "wait_seller_delivery", "wait_seller_send_goods",
	})
	viper.SetDefault("sync.excludedStatuses", []string{
		"shipped", "completed", "closed",
	})
	viper.SetDefault("sync.firstRunExcludedStatuses", []string{
		"partially_shipped", "shipped", "completed", "closed",
	})

	// Настройки выгрузки остатков
	viper.SetDefault("stock.enabled", true)
	viper.SetDefault("stock.bundleSeparator", "**")
	viper.SetDefault("stock.multiplierAttribute", "bundle_multipliers")

	// Настройки метрик
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.endpoint", "/metrics")

	// Настройки безопасности
	viper.SetDefault("security.jwtSecret", "your-secret-key")
	viper.SetDefault("security.jwtExpirationMin", "60m")
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables() {
	// Основные настройки
	viper.BindEnv("appName", "APP_NAME")
	viper.BindEnv("version", "APP_VERSION")
	viper.BindEnv("logLevel", "LOG_LEVEL")
	viper.BindEnv("env", "APP_ENV")

	// Настройки сервера
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.readTimeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.writeTimeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.shutdownTimeout", "SERVER_SHUTDOWN_TIMEOUT")

	// Настройки Postgres
	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	viper.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	viper.BindEnv("postgres.timeout", "POSTGRES_TIMEOUT")
	viper.BindEnv("postgres.poolSize", "POSTGRES_POOL_SIZE")

	// Настройки Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.poolSize", "REDIS_POOL_SIZE")
	viper.BindEnv("redis.minIdleConns", "REDIS_MIN_IDLE_CONNS")
	viper.BindEnv("redis.connectTimeout", "REDIS_CONNECT_TIMEOUT")
	viper.BindEnv("redis.readTimeout", "REDIS_READ_TIMEOUT")
	viper.BindEnv("redis.writeTimeout", "REDIS_WRITE_TIMEOUT")
	viper.BindEnv("redis.defaultExpiration", "REDIS_DEFAULT_EXPIRATION")

	// Настройки Kafka
	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("kafka.groupID", "KAFKA_GROUP_ID")
	viper.BindEnv("kafka.orderTopic", "KAFKA_ORDER_TOPIC")
	viper.BindEnv("kafka.stockTopic", "KAFKA_STOCK_TOPIC")
	viper.BindEnv("kafka.sessionTimeout", "KAFKA_SESSION_TIMEOUT")
	viper.BindEnv("kafka.flushTimeout", "KAFKA_FLUSH_TIMEOUT")
	viper.BindEnv("kafka.compressionType", "KAFKA_COMPRESSION_TYPE")

	// Настройки подключения к маркетплейсу
	viper.BindEnv("mms.baseURL", "MMS_BASE_URL")
	viper.BindEnv("mms.appID", "MMS_APP_ID")
	viper.BindEnv("mms.appKey", "MMS_APP_KEY")
	viper.BindEnv("mms.marketplaceID", "MMS_MARKETPLACE_ID")
	viper.BindEnv("mms.timeout", "MMS_TIMEOUT")

	// Настройки цикла синхронизации заказов
	viper.BindEnv("sync.interval", "SYNC_INTERVAL")
	viper.BindEnv("sync.storeID", "SYNC_STORE_ID")
	viper.BindEnv("sync.initialSinceID", "SYNC_INITIAL_SINCE_ID")
	viper.BindEnv("sync.emailDomain", "SYNC_EMAIL_DOMAIN")
	viper.BindEnv("sync.cycleLockTTL", "SYNC_CYCLE_LOCK_TTL")

	// Настройки выгрузки остатков
	viper.BindEnv("stock.enabled", "STOCK_ENABLED")
	viper.BindEnv("stock.bundleSeparator", "STOCK_BUNDLE_SEPARATOR")
	viper.BindEnv("stock.multiplierAttribute", "STOCK_MULTIPLIER_ATTRIBUTE")

	// Настройки метрик
	viper.BindEnv("metrics.enabled", "METRICS_ENABLED")
	viper.BindEnv("metrics.endpoint", "METRICS_ENDPOINT")

	// Настройки безопасности
	viper.BindEnv("security.jwtSecret", "JWT_SECRET")
	viper.BindEnv("security.jwtExpirationMin", "JWT_EXPIRATION_MIN")
}
