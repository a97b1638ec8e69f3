package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/skalibog/trendgym/pkg/logger"
	"github.com/skalibog/trendgym/pkg/models"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance   BinanceConfig  `yaml:"binance"`
	Listing   ListingConfig  `yaml:"listing"`
	Exercises ExerciseConfig `yaml:"exercises"`
	Feedback  FeedbackConfig `yaml:"feedback"`
	Storage   StorageConfig  `yaml:"storage"`
	Server    ServerConfig   `yaml:"server"`
	Log       LogConfig      `yaml:"log"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey         string        `yaml:"api_key"`
	APISecret      string        `yaml:"api_secret"`
	Testnet        bool          `yaml:"testnet"`
	BaseURL        string        `yaml:"base_url"`
	QuoteAsset     string        `yaml:"quote_asset"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	BackoffMin     time.Duration `yaml:"backoff_min"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
}

// ListingConfig настройки поиска даты листинга
type ListingConfig struct {
	Epoch         time.Time `yaml:"epoch"`
	ProbeInterval string    `yaml:"probe_interval"`
	BatchSize     int       `yaml:"batch_size"`
	MaxProbes     int       `yaml:"max_probes"`
}

// ExerciseConfig настройки генерации упражнений
type ExerciseConfig struct {
	PoolSize     int    `yaml:"pool_size"`
	WindowLength int    `yaml:"window_length"`
	Interval     string `yaml:"interval"`
	MaxAttempts  int    `yaml:"max_attempts"`
	Seed         int64  `yaml:"seed"`
	Rebuild      bool   `yaml:"rebuild"`
}

// FeedbackConfig настройки пользовательской модели
type FeedbackConfig struct {
	LearningRate  float64 `yaml:"learning_rate"`
	HiddenSize    int     `yaml:"hidden_size"`
	FeaturePoints int     `yaml:"feature_points"`
}

// StorageConfig настройки хранения данных
type StorageConfig struct {
	Type     string         `yaml:"type"` // memory | file | redis | postgres
	Dir      string         `yaml:"dir"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Influx   InfluxConfig   `yaml:"influx"`
}

// RedisConfig настройки Redis для пользовательских данных
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// PostgresConfig настройки PostgreSQL для пула упражнений
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// InfluxConfig настройки архива свечей и ответов
type InfluxConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// ServerConfig настройки HTTP сервера
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level    string `yaml:"level"`
	File     string `yaml:"file"`
	JSONFile string `yaml:"json_file"`
	Console  bool   `yaml:"console"`
	Truncate bool   `yaml:"truncate"`
}

// LoggerOptions преобразует LogConfig в опции логгера
func (c LogConfig) LoggerOptions() logger.Options {
	return logger.Options{
		Level:    c.Level,
		File:     c.File,
		JSONFile: c.JSONFile,
		Console:  c.Console,
		Truncate: c.Truncate,
	}
}

// Binance отдает не более 1000 свечей за запрос
const maxBatchSize = 1000

// Binance начала работу 1 июля 2017 года, раньше данных нет
var defaultEpoch = time.Date(2017, time.July, 1, 0, 0, 0, 0, time.UTC)

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML, подставляет значения по умолчанию и переменные окружения
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadEnv подгружает .env, если файл существует
func LoadEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "не удалось прочитать %s: %v\n", path, err)
	}
}

// applyEnv переопределяет ключи API значениями из окружения
func (c *Config) applyEnv() {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Binance.APISecret = v
	}
	if v := os.Getenv("TRENDGYM_POSTGRES_DSN"); v != "" {
		c.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("TRENDGYM_INFLUX_TOKEN"); v != "" {
		c.Storage.Influx.Token = v
	}
}

func (c *Config) applyDefaults() {
	if c.Binance.QuoteAsset == "" {
		c.Binance.QuoteAsset = "USDT"
	}
	if c.Binance.RequestTimeout == 0 {
		c.Binance.RequestTimeout = 10 * time.Second
	}
	if c.Binance.MaxRetries == 0 {
		c.Binance.MaxRetries = 5
	}
	if c.Binance.BackoffMin == 0 {
		c.Binance.BackoffMin = 500 * time.Millisecond
	}
	if c.Binance.BackoffMax == 0 {
		c.Binance.BackoffMax = 30 * time.Second
	}

	if c.Listing.Epoch.IsZero() {
		c.Listing.Epoch = defaultEpoch
	}
	if c.Listing.ProbeInterval == "" {
		c.Listing.ProbeInterval = "1d"
	}
	if c.Listing.BatchSize == 0 {
		c.Listing.BatchSize = maxBatchSize
	}
	if c.Listing.MaxProbes == 0 {
		c.Listing.MaxProbes = 16
	}

	if c.Exercises.PoolSize == 0 {
		c.Exercises.PoolSize = 3
	}
	if c.Exercises.WindowLength == 0 {
		c.Exercises.WindowLength = 1000
	}
	if c.Exercises.Interval == "" {
		c.Exercises.Interval = "15m"
	}
	if c.Exercises.MaxAttempts == 0 {
		c.Exercises.MaxAttempts = 100 * c.Exercises.PoolSize
	}

	if c.Feedback.LearningRate == 0 {
		c.Feedback.LearningRate = 0.01
	}
	if c.Feedback.HiddenSize == 0 {
		c.Feedback.HiddenSize = 32
	}
	if c.Feedback.FeaturePoints == 0 {
		c.Feedback.FeaturePoints = 64
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "file"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data"
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "trendgym:"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" && c.Log.JSONFile == "" {
		c.Log.Console = true
	}
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if !models.ValidInterval(c.Listing.ProbeInterval) {
		return fmt.Errorf("listing.probe_interval: неизвестный интервал %q", c.Listing.ProbeInterval)
	}
	if !models.ValidInterval(c.Exercises.Interval) {
		return fmt.Errorf("exercises.interval: неизвестный интервал %q", c.Exercises.Interval)
	}
	if c.Listing.BatchSize < 1 || c.Listing.BatchSize > maxBatchSize {
		return fmt.Errorf("listing.batch_size должен быть в диапазоне [1, %d]", maxBatchSize)
	}
	if c.Listing.MaxProbes < 1 {
		return errors.New("listing.max_probes должен быть положительным")
	}
	if c.Exercises.PoolSize < 1 {
		return errors.New("exercises.pool_size должен быть положительным")
	}
	if c.Exercises.WindowLength < 2 {
		return errors.New("exercises.window_length должен быть не меньше 2")
	}
	if c.Exercises.MaxAttempts < c.Exercises.PoolSize {
		return errors.New("exercises.max_attempts меньше pool_size")
	}
	if c.Feedback.LearningRate <= 0 {
		return errors.New("feedback.learning_rate должен быть положительным")
	}
	if c.Feedback.HiddenSize < 1 || c.Feedback.FeaturePoints < 2 {
		return errors.New("feedback: hidden_size >= 1 и feature_points >= 2")
	}

	switch c.Storage.Type {
	case "memory", "file", "redis":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn обязателен для storage.type=postgres")
		}
	default:
		return fmt.Errorf("storage.type: неизвестный тип %q", c.Storage.Type)
	}

	if c.Storage.Influx.Enabled && (c.Storage.Influx.URL == "" || c.Storage.Influx.Bucket == "") {
		return errors.New("storage.influx: url и bucket обязательны")
	}
	return nil
}
